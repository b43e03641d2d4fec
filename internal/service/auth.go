package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// AuthService выдает и проверяет JWT токены оператора дашборда.
// Учетная запись одна: доступ открывается паролем оператора из конфигурации.
type AuthService struct {
	jwtSecret        string
	tokenExpiry      time.Duration
	operatorPassword string
	logger           *logrus.Logger
}

func NewAuthService(jwtSecret string, tokenExpiry time.Duration, operatorPassword string, logger *logrus.Logger) *AuthService {
	return &AuthService{
		jwtSecret:        jwtSecret,
		tokenExpiry:      tokenExpiry,
		operatorPassword: operatorPassword,
		logger:           logger,
	}
}

// SignIn проверяет пароль оператора и выдает токен доступа
func (s *AuthService) SignIn(password string) (string, error) {
	if s.operatorPassword == "" {
		s.logger.Error("Пароль оператора не настроен (OPERATOR_PASSWORD)")
		return "", errors.New("авторизация не настроена")
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.operatorPassword)) != 1 {
		s.logger.Warn("Неудачная попытка входа оператора")
		return "", errors.New("неверный пароль")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "operator",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}

	s.logger.Info("Оператор успешно авторизован")
	return token, nil
}

// ParseToken проверяет подпись и срок действия токена и возвращает субъект
func (s *AuthService) ParseToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
			}
			return []byte(s.jwtSecret), nil
		},
	)
	if err != nil {
		return "", fmt.Errorf("неверный токен: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", errors.New("неверный токен")
	}
	return claims.Subject, nil
}
