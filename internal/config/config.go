// Package config holds runtime settings and the model catalog.
package config

import (
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Settings is the resolved runtime configuration, built once at startup
// and passed down explicitly.
type Settings struct {
	GoogleAPIKey       string
	OpenAIAPIKey       string
	APIKeys            []string
	RateLimitPerMinute int
	MaxConcurrent      int
	MaxQueueDepth      int
	MaxFileSizeMB      int64
	CORSOrigins        []string

	MinerU MinerUOptions
}

// MinerUOptions tunes the mineru document parser.
type MinerUOptions struct {
	Language      string // korean, en, ch, japan
	ParseMethod   string // auto, ocr, txt
	FormulaEnable bool
	TableEnable   bool
	MakeMode      string // mm_markdown, nlp_markdown
}

// AuthEnabled reports whether API-key authentication is configured.
func (s *Settings) AuthEnabled() bool { return len(s.APIKeys) > 0 }

// Load resolves settings from the environment (and an optional local
// .env file) via the given viper instance.
func Load(v *viper.Viper) *Settings {
	_ = godotenv.Load()

	s := &Settings{
		GoogleAPIKey:       getEnv(v, "GOOGLE_API_KEY"),
		OpenAIAPIKey:       getEnv(v, "OPENAI_API_KEY"),
		RateLimitPerMinute: 60,
		MaxConcurrent:      4,
		MaxQueueDepth:      32,
		MaxFileSizeMB:      50,
		MinerU: MinerUOptions{
			Language:      "korean",
			ParseMethod:   "auto",
			FormulaEnable: true,
			TableEnable:   true,
			MakeMode:      "mm_markdown",
		},
	}

	if keys := getEnv(v, "API_KEYS"); keys != "" {
		s.APIKeys = splitCSV(keys)
	}
	if origins := getEnv(v, "CORS_ORIGINS"); origins != "" {
		s.CORSOrigins = splitCSV(origins)
	}
	if n := getEnvInt(v, "RATE_LIMIT_PER_MINUTE"); n > 0 {
		s.RateLimitPerMinute = n
	}
	if n := getEnvInt(v, "MAX_CONCURRENT_PARSES"); n > 0 {
		s.MaxConcurrent = n
	}
	if n := getEnvInt(v, "MAX_QUEUE_DEPTH"); n > 0 {
		s.MaxQueueDepth = n
	}
	if n := getEnvInt(v, "MAX_FILE_SIZE_MB"); n > 0 {
		s.MaxFileSizeMB = int64(n)
	}

	if lang := getEnv(v, "MINERU_LANG"); lang != "" {
		s.MinerU.Language = lang
	}
	if method := getEnv(v, "MINERU_PARSE_METHOD"); method != "" {
		s.MinerU.ParseMethod = method
	}
	_ = v.BindEnv("MINERU_FORMULA_ENABLE", "MINERU_FORMULA_ENABLE")
	_ = v.BindEnv("MINERU_TABLE_ENABLE", "MINERU_TABLE_ENABLE")
	if v.IsSet("MINERU_FORMULA_ENABLE") {
		s.MinerU.FormulaEnable = v.GetBool("MINERU_FORMULA_ENABLE")
	}
	if v.IsSet("MINERU_TABLE_ENABLE") {
		s.MinerU.TableEnable = v.GetBool("MINERU_TABLE_ENABLE")
	}
	if mode := getEnv(v, "MINERU_MAKE_MODE"); mode != "" {
		s.MinerU.MakeMode = mode
	}

	return s
}

// ViperForCmd binds a command's flags and environment to a fresh viper instance.
func ViperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMPARSER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examparser")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examparser")
	v.AddConfigPath("/etc/examparser")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// getEnv reads an unprefixed environment variable through viper,
// falling back to the prefixed form bound by AutomaticEnv.
func getEnv(v *viper.Viper, key string) string {
	_ = v.BindEnv(key, key)
	return v.GetString(key)
}

func getEnvInt(v *viper.Viper, key string) int {
	_ = v.BindEnv(key, key)
	return v.GetInt(key)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
