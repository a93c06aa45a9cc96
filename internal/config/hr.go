package config

import (
	"os"
	"strconv"
)

// HRConfig carries operational knobs that sit outside tenant lending
// policies: upload handling and pagination bounds.
type HRConfig struct {
	AttachmentsDir  string
	DefaultPageSize int
	MaxPageSize     int
}

func LoadHRConfig() *HRConfig {
	return &HRConfig{
		AttachmentsDir:  getEnv("HR_ATTACHMENTS_DIR", "./uploads"),
		DefaultPageSize: getEnvAsInt("HR_DEFAULT_PAGE_SIZE", 20),
		MaxPageSize:     getEnvAsInt("HR_MAX_PAGE_SIZE", 100),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
