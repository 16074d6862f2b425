package domain

// Config mirrors ~/.phocache/config.yaml.
type Config struct {
	ConfigFormatVersion string              `yaml:"config_format_version"`
	Storage             StorageSettings     `yaml:"storage"`
	History             HistorySettings     `yaml:"history"`
	Compression         CompressionSettings `yaml:"compression"`
	Thumbnail           ThumbnailSettings   `yaml:"thumbnail"`
	Logging             LoggingSettings     `yaml:"logging"`
}

// StorageSettings selects and locates the storage engine.
type StorageSettings struct {
	Engine string        `yaml:"engine"`
	Path   string        `yaml:"path"`
	Quota  string        `yaml:"quota"`
	Redis  RedisSettings `yaml:"redis"`
}

// RedisSettings configures the redis engine.
type RedisSettings struct {
	Addr           string `yaml:"addr"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	ConnectTimeout string `yaml:"connect_timeout"`
}

// HistorySettings controls retention.
type HistorySettings struct {
	MaxItems  int    `yaml:"max_items"`
	SoftLimit string `yaml:"soft_limit"`
}

// CompressionSettings configures the stored detail image.
type CompressionSettings struct {
	MaxWidth  int     `yaml:"max_width"`
	MaxHeight int     `yaml:"max_height"`
	Quality   float64 `yaml:"quality"`
}

// ThumbnailSettings configures the list preview.
type ThumbnailSettings struct {
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	Quality float64 `yaml:"quality"`
}

// LoggingSettings configures the zap logger.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// CompressOptions converts the settings into transcoder options.
func (c CompressionSettings) CompressOptions() CompressOptions {
	return CompressOptions{MaxWidth: c.MaxWidth, MaxHeight: c.MaxHeight, Quality: c.Quality}
}

// ThumbnailOptions converts the settings into transcoder options.
func (t ThumbnailSettings) ThumbnailOptions() ThumbnailOptions {
	return ThumbnailOptions{Width: t.Width, Height: t.Height, Quality: t.Quality}
}
