package service

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-mail/mail/v2"
	"github.com/sirupsen/logrus"
)

// AlertSender отправляет оператору email-оповещения о недоступности
// базы данных
type AlertSender struct {
	dialer               *mail.Dialer
	logger               *logrus.Logger
	enabled              bool
	isInsecureSkipVerify bool
}

func NewAlertSender(logger *logrus.Logger) *AlertSender {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPortStr := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	enabled := os.Getenv("EMAIL_SENDER_ENABLED") == "true"
	isInsecureSkipVerify := os.Getenv("INSECURE_SKIP_VERIFY") == "true"

	if !enabled {
		return &AlertSender{logger: logger, enabled: false}
	}

	smtpPort, err := strconv.Atoi(smtpPortStr)
	if err != nil {
		logger.Fatalf("Ошибка преобразования SMTP_PORT: %v", err)
	}
	d := mail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass)
	d.TLSConfig = &tls.Config{
		ServerName:         smtpHost,
		InsecureSkipVerify: isInsecureSkipVerify,
	}
	return &AlertSender{
		dialer:               d,
		logger:               logger,
		enabled:              enabled,
		isInsecureSkipVerify: isInsecureSkipVerify,
	}
}

// SendStoreAlert уведомляет оператора, что база данных осталась недоступной
// после исчерпания попыток подключения
func (as *AlertSender) SendStoreAlert(email string, cause error) error {
	if !as.enabled {
		as.logger.Warn("Отправка оповещений отключена")
		return nil
	}
	if email == "" {
		as.logger.Warn("Адрес для оповещений не задан (ALERT_EMAIL)")
		return nil
	}

	subject := "Дашборд: база данных недоступна"
	content := fmt.Sprintf(`
		<h1>База данных недоступна</h1>
		<p>Проверка подключения к базе данных калькулятора завершилась ошибкой:</p>
		<p><strong>%s</strong></p>
		<p>Время: <strong>%s</strong></p>
		<small>Это автоматическое уведомление, пожалуйста, не отвечайте на него</small>
	`, cause, time.Now().Format("02.01.2006 15:04"))

	return as.sendEmail(email, subject, content)
}

func (as *AlertSender) sendEmail(to, subject, body string) error {
	m := mail.NewMessage()
	m.SetHeader("From", os.Getenv("SMTP_USER"))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := as.dialer.DialAndSend(m); err != nil {
		as.logger.WithError(err).Error("Ошибка отправки email")
		return fmt.Errorf("не удалось отправить email: %w", err)
	}

	as.logger.Infof("Email успешно отправлен на %s", to)
	return nil
}
