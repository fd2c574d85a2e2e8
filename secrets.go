package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"staff-portal/config"
)

// postgresSecret is the RDS-managed secret layout.
type postgresSecret struct {
	Username             string `json:"username"`
	Password             string `json:"password"`
	Engine               string `json:"engine"`
	Host                 string `json:"host"`
	Port                 int    `json:"port"`
	DBInstanceIdentifier string `json:"dbInstanceIdentifier"`
	DBName               string `json:"dbname"`
}

func loadSecretMap(secretName string) (map[string]string, error) {
	secretJSON, err := getSecret(secretName)
	if err != nil {
		return nil, err
	}
	secrets := make(map[string]string)
	if err := json.Unmarshal([]byte(secretJSON), &secrets); err != nil {
		return nil, fmt.Errorf("parse secret %s: %w", secretName, err)
	}
	return secrets, nil
}

func setEnvFromMap(values map[string]string) error {
	for key, value := range values {
		if err := setEnv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func validatePostgresSecret(secret postgresSecret) error {
	if secret.Username == "" || secret.Password == "" || secret.Engine == "" || secret.Host == "" || secret.DBInstanceIdentifier == "" {
		return errors.New("postgres secret is missing required fields")
	}
	if secret.Port <= 0 || secret.Port > 65535 {
		return fmt.Errorf("postgres secret has invalid port %d", secret.Port)
	}
	return nil
}

func loadPostgresSecret() (postgresSecret, error) {
	raw, err := getSecret("prod/postgres")
	if err != nil {
		return postgresSecret{}, fmt.Errorf("error retrieving Postgres secret: %w", err)
	}
	var secret postgresSecret
	if err := json.Unmarshal([]byte(raw), &secret); err != nil {
		return postgresSecret{}, fmt.Errorf("error parsing Postgres secret JSON: %w", err)
	}
	if err := validatePostgresSecret(secret); err != nil {
		return postgresSecret{}, err
	}
	return secret, nil
}

// loadProdSecrets exports AWS Secrets Manager values into the environment
// before config.Load runs. The store secret fetched depends on STORE_DRIVER.
func loadProdSecrets() error {
	jwtSecrets, err := loadSecretMap("prod/jwt")
	if err != nil {
		return fmt.Errorf("error retrieving JWT secret: %w", err)
	}
	if err := setEnvFromMap(jwtSecrets); err != nil {
		return err
	}

	driver := strings.ToLower(os.Getenv("STORE_DRIVER"))
	if driver == "" {
		driver = config.StoreDriverFirebase
	}

	switch driver {
	case config.StoreDriverFirebase:
		firebaseSecrets, err := loadSecretMap("prod/firebase")
		if err != nil {
			return fmt.Errorf("error retrieving Firebase secret: %w", err)
		}
		return setEnvFromMap(firebaseSecrets)
	case config.StoreDriverPostgres:
		secret, err := loadPostgresSecret()
		if err != nil {
			return err
		}
		values := [][2]string{
			{"DB_USERNAME", secret.Username},
			{"DB_PASSWORD", secret.Password},
			{"DB_ENGINE", secret.Engine},
			{"DB_HOST", secret.Host},
			{"DB_PORT", strconv.Itoa(secret.Port)},
			{"DB_INSTANCE_IDENTIFIER", secret.DBInstanceIdentifier},
		}
		if secret.DBName != "" {
			values = append(values, [2]string{"DB_NAME", secret.DBName})
		}
		for _, kv := range values {
			if err := setEnv(kv[0], kv[1]); err != nil {
				return fmt.Errorf("set %s: %w", kv[0], err)
			}
		}
	}
	return nil
}
