package commands

// Flag names
const (
	flagCategory = "category"
)

// Error messages
const (
	ErrConfigLoaderUnavailable   = "config loader unavailable"
	ErrDoctorServiceUnavailable  = "doctor service unavailable"
	ErrHistoryServiceUnavailable = "history service unavailable"
	ErrRecordNotFound            = "record not found"
)

// Success messages
const (
	MsgConfigurationValid = "Configuration valid"
	MsgNoHistoryRecorded  = "No history recorded yet."
	MsgClearCancelled     = "Clear cancelled."
)

// usageBarWidth is the width of the stats gauge.
const usageBarWidth = 30
