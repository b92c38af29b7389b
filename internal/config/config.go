// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first when present; variables
// already set in the environment take precedence over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ironsheep/face-overlay/internal/overlay"
)

// Environment variable names.
const (
	EnvLogLevel       = "FACE_OVERLAY_LOG_LEVEL"
	EnvLogFile        = "FACE_OVERLAY_LOG_FILE"
	EnvHTTPAddr       = "FACE_OVERLAY_HTTP_ADDR"
	EnvStrokeWidth    = "FACE_OVERLAY_STROKE_WIDTH"
	EnvFontMin        = "FACE_OVERLAY_FONT_MIN"
	EnvFontMax        = "FACE_OVERLAY_FONT_MAX"
	EnvTagPadding     = "FACE_OVERLAY_TAG_PADDING"
	EnvRecognizedHex  = "FACE_OVERLAY_RECOGNIZED_COLOR"
	EnvUnknownHex     = "FACE_OVERLAY_UNKNOWN_COLOR"
	EnvTextHex        = "FACE_OVERLAY_TEXT_COLOR"
	EnvMaxHeight      = "FACE_OVERLAY_MAX_HEIGHT"
	EnvDecodeTimeout  = "FACE_OVERLAY_DECODE_TIMEOUT_MS"
	EnvAllowedOrigins = "FACE_OVERLAY_ALLOWED_ORIGINS"
)

// Config holds every tunable setting.
type Config struct {
	LogLevel string `validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFile  string

	// HTTPAddr is the listen address used in --http mode.
	HTTPAddr string `validate:"required,hostname_port"`

	// AllowedOrigins lists CORS origins. Empty allows all.
	AllowedOrigins []string `validate:"dive,url"`

	StrokeWidth float64 `validate:"gt=0"`
	FontMin     float64 `validate:"gt=0"`
	FontMax     float64 `validate:"gtefield=FontMin"`
	TagPadding  float64 `validate:"gte=0"`

	RecognizedColor string `validate:"hexcolor"`
	UnknownColor    string `validate:"hexcolor"`
	TextColor       string `validate:"hexcolor"`

	// MaxHeight bounds the rendered image height when fitting it to a
	// container.
	MaxHeight int `validate:"gt=0"`

	// DecodeTimeoutMS bounds how long a load waits for its decode.
	DecodeTimeoutMS int `validate:"gt=0"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:        "info",
		HTTPAddr:        "127.0.0.1:8085",
		StrokeWidth:     3,
		FontMin:         12,
		FontMax:         16,
		TagPadding:      4,
		RecognizedColor: overlay.DefaultRecognizedHex,
		UnknownColor:    overlay.DefaultUnknownHex,
		TextColor:       overlay.DefaultTextHex,
		MaxHeight:       500,
		DecodeTimeoutMS: 10000,
	}
}

// Load reads .env (if present) and the environment on top of Default.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, applying defaults for
// unset variables, and validates it.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *float64) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
	integer := func(key string, dst *int) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	str(EnvLogLevel, &cfg.LogLevel)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	str(EnvLogFile, &cfg.LogFile)
	str(EnvHTTPAddr, &cfg.HTTPAddr)
	num(EnvStrokeWidth, &cfg.StrokeWidth)
	num(EnvFontMin, &cfg.FontMin)
	num(EnvFontMax, &cfg.FontMax)
	num(EnvTagPadding, &cfg.TagPadding)
	str(EnvRecognizedHex, &cfg.RecognizedColor)
	str(EnvUnknownHex, &cfg.UnknownColor)
	str(EnvTextHex, &cfg.TextColor)
	integer(EnvMaxHeight, &cfg.MaxHeight)
	integer(EnvDecodeTimeout, &cfg.DecodeTimeoutMS)

	if v := strings.TrimSpace(getenv(EnvAllowedOrigins)); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Style converts the drawing settings into an overlay style.
func (c Config) Style() (overlay.Style, error) {
	s, err := overlay.NewStyle(c.RecognizedColor, c.UnknownColor, c.TextColor)
	if err != nil {
		return overlay.Style{}, err
	}
	s.StrokeWidth = c.StrokeWidth
	s.FontMin = c.FontMin
	s.FontMax = c.FontMax
	s.TagPadding = c.TagPadding
	if err := s.Validate(); err != nil {
		return overlay.Style{}, err
	}
	return s, nil
}
