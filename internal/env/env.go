package env

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	AWSRegion        = "AWS_REGION"
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
	MongoURI         = "MONGO_URI"
	MongoDatabase    = "MONGO_DATABASE"
	UserSecretKey    = "USER_SECRET"
	ChatRedisURL     = "CHAT_REDIS_URL"
	ChatRedisPass    = "CHAT_REDIS_PASS"
	ConfigFile       = "CHAT_CONFIG_FILE"
	StoreDriver      = "CHAT_STORE_DRIVER"
)

// Load reads an optional .env file and checks the keys the selected store
// driver needs. Variables already set in the environment win over the file.
func Load(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("env: load %s: %w", f, err)
		}
	}

	switch strings.ToLower(GetOrDefault(StoreDriver, "dynamodb")) {
	case "dynamodb":
		return Require(AWSRegion)
	case "mongo":
		return Require(MongoURI)
	}
	return nil
}

// Require reports every key in keys that is unset.
func Require(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("env: required environment variables not set: %s", strings.Join(missing, ", "))
	}
	return nil
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}
