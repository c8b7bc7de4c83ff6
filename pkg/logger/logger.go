package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Config 日誌設定
type Config struct {
	Level      string `yaml:"level"`  // debug / info / warn / error
	Format     string `yaml:"format"` // text / json / logfmt
	Prefix     string `yaml:"prefix"`
	TimeFormat string `yaml:"time_format" split_words:"true"`
	Caller     bool   `yaml:"caller"`
}

var formatters = map[string]log.Formatter{
	"text":   log.TextFormatter,
	"json":   log.JSONFormatter,
	"logfmt": log.LogfmtFormatter,
}

// New 建立以 charmbracelet/log 為 handler 的 slog.Logger
//
// 參數:
//
//	cfg: 日誌設定
//	w: 輸出目標 (nil 使用 os.Stdout)
//
// 回傳:
//
//	*slog.Logger: 可直接注入各層的 logger
func New(cfg Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	formatter, ok := formatters[strings.ToLower(cfg.Format)]
	if !ok {
		formatter = log.TextFormatter
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = "2006-01-02 15:04:05.000"
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.Caller,
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Level:           ParseLevel(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	handler.SetStyles(styles())
	return slog.New(handler)
}

// ParseLevel 解析等級字串，無法辨識時為 info
func ParseLevel(level string) log.Level {
	l, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return log.InfoLevel
	}
	return l
}

// styles 文字格式下各等級的顏色
func styles() *log.Styles {
	s := log.DefaultStyles()
	levelStyle := func(label, color string) lipgloss.Style {
		return lipgloss.NewStyle().
			SetString(label).
			Bold(true).
			MaxWidth(5).
			Foreground(lipgloss.Color(color))
	}
	s.Levels[log.DebugLevel] = levelStyle("DEBUG", "63")
	s.Levels[log.InfoLevel] = levelStyle("INFO", "86")
	s.Levels[log.WarnLevel] = levelStyle("WARN", "192")
	s.Levels[log.ErrorLevel] = levelStyle("ERROR", "204")
	s.Keys["error"] = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	s.Values["error"] = lipgloss.NewStyle().Bold(true)
	s.Keys["error_code"] = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	return s
}
