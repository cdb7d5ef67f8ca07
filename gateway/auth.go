package gateway

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Keys 登录令牌所需的密钥对标识。
type Keys struct {
	KeyID      string
	PrivateKey string // RSA PEM
}

// KeysFromEnv 从环境变量读取密钥。私钥里的字面 \n 还原为换行。
func KeysFromEnv(network Network) (Keys, error) {
	kidVar, keyVar := "THALEX_KID_TEST", "THALEX_KEY_TEST"
	if network == NetworkProd {
		kidVar, keyVar = "THALEX_KID_PROD", "THALEX_KEY_PROD"
	}
	kid := os.Getenv(kidVar)
	if kid == "" {
		return Keys{}, fmt.Errorf("missing %s", kidVar)
	}
	key := os.Getenv(keyVar)
	if key == "" {
		return Keys{}, fmt.Errorf("missing %s", keyVar)
	}
	return Keys{
		KeyID:      kid,
		PrivateKey: strings.ReplaceAll(key, `\n`, "\n"),
	}, nil
}

// MakeAuthToken 铸造 RS512 登录令牌。iat 加入少量抖动，
// 避免同一秒内重连生成完全相同的令牌。
func (k Keys) MakeAuthToken() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(k.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS512, jwt.MapClaims{
		"iat": time.Now().Unix() + rand.Int63n(10),
	})
	token.Header["kid"] = k.KeyID

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
