package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"calcus-analytics/internal/config"
	"calcus-analytics/internal/handler"
	"calcus-analytics/internal/repository"
	"calcus-analytics/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	// Уровень логирования (Debug для разработки, Info для продакшена)
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Загрузка конфигурации приложения
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация репозитория и сервисов
	logger.Info("Инициализация сервисов...")
	calculationRepo := repository.NewCalculationRepository(cfg, logger)
	dataService := service.NewDataService(calculationRepo, cfg.RecordsCacheTTL, logger)
	cbrClient := service.NewCBRClient(cfg.CBRURL, cfg.RatesCacheTTL, logger)
	analyticService := service.NewAnalyticService(logger)
	exportService := service.NewExportService(logger)
	authService := service.NewAuthService(cfg.JWTSecret, cfg.TokenExpiry, cfg.OperatorPassword, logger)
	alertSender := service.NewAlertSender(logger)

	// Инициализация HTTP обработчиков
	logger.Info("Инициализация обработчиков API...")
	authHandler := handler.NewAuthHandler(authService, logger)
	dashboardHandler := handler.NewDashboardHandler(dataService, cbrClient, analyticService, exportService, logger)

	// Настройка маршрутизатора
	router := mux.NewRouter()
	router.Use(handler.RequestIDMiddleware(logger))

	// 1. Публичные маршруты для авторизации оператора
	publicRouter := router.PathPrefix("/auth").Subrouter()
	authHandler.RegisterRoutes(publicRouter)

	// 2. Защищенные маршруты аналитики (требуется JWT токен)
	apiRouter := router.PathPrefix("/api/analytics").Subrouter()
	apiRouter.Use(handler.AuthMiddleware(authService, logger))
	dashboardHandler.RegisterRoutes(apiRouter)

	// Настройка планировщика: периодическая проверка доступности БД
	logger.Info("Настройка планировщика проверки доступности БД...")
	c := cron.New()
	_, err = c.AddFunc("@every 15m", func() {
		if _, err := calculationRepo.FetchAll(context.Background()); err != nil {
			logger.WithError(err).Error("Проверка доступности БД завершилась ошибкой")
			if alertErr := alertSender.SendStoreAlert(cfg.AlertEmail, err); alertErr != nil {
				logger.WithError(alertErr).Error("Ошибка отправки оповещения")
			}
		} else {
			logger.Debug("Проверка доступности БД пройдена")
		}
	})
	if err != nil {
		logger.Fatalf("Ошибка настройки планировщика: %v", err)
	}
	c.Start()

	// Настройка и запуск HTTP сервера
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		logger.Infof("Запуск сервера на %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Ошибка сервера: %v", err)
		}
	}()

	// Ожидание сигналов для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Завершение работы сервера...")
	c.Stop()
	if err := server.Shutdown(context.Background()); err != nil {
		logger.Errorf("Ошибка при завершении работы сервера: %v", err)
	}
	logger.Info("Сервер успешно остановлен")
}
