package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lambertxiao/go-tweetfs/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Credentials are the four OAuth1 secrets used to post on behalf of a user.
type Credentials struct {
	ConsumerKey       string `mapstructure:"consumer_key" validate:"required"`
	ConsumerSecret    string `mapstructure:"consumer_secret" validate:"required"`
	AccessToken       string `mapstructure:"access_token" validate:"required"`
	AccessTokenSecret string `mapstructure:"access_token_secret" validate:"required"`
}

var credentialEnv = map[string]string{
	"consumer_key":        "CONSUMER_KEY",
	"consumer_secret":     "CONSUMER_SECRET",
	"access_token":        "ACCESS_TOKEN",
	"access_token_secret": "ACCESS_TOKEN_SECRET",
}

var validate = validator.New()

// LoadCredentials reads the credentials from the environment. If envFile
// exists it is read as a dotenv file first; real environment variables take
// precedence over its entries.
func LoadCredentials(envFile string) (*Credentials, error) {
	v := viper.New()
	for key, env := range credentialEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read env file %s: %w", envFile, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	settings := make(map[string]interface{}, len(credentialEnv))
	for key := range credentialEnv {
		settings[key] = v.GetString(key)
	}

	var creds Credentials
	if err := mapstructure.Decode(settings, &creds); err != nil {
		return nil, err
	}

	if err := validate.Struct(&creds); err != nil {
		return nil, formatValidationError(err)
	}
	return &creds, nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if env, ok := credentialEnv[fieldKey(fe.StructField())]; ok {
			missing = append(missing, env)
		} else {
			missing = append(missing, fe.Field())
		}
	}
	return fmt.Errorf("%w: %s", types.ErrNoCredentials, strings.Join(missing, ", "))
}

func fieldKey(field string) string {
	switch field {
	case "ConsumerKey":
		return "consumer_key"
	case "ConsumerSecret":
		return "consumer_secret"
	case "AccessToken":
		return "access_token"
	case "AccessTokenSecret":
		return "access_token_secret"
	}
	return ""
}
