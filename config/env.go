package env

import "os"

const (
	Key        = "APP_ENV"
	DefaultEnv = "tst001"
)

// GetAppEnv 環境変数取得。未設定の場合はDefaultEnvを返す
func GetAppEnv() (string, error) {
	env := os.Getenv(Key)
	if env != "" {
		return env, nil
	}
	return DefaultEnv, nil
}
