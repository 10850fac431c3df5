package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"pairline/backend/internal/api/handler"
	"pairline/backend/internal/config"
	"pairline/backend/internal/matching"
	"pairline/backend/internal/notify"
	"pairline/backend/internal/proposal"
	"pairline/backend/internal/room"
	"pairline/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies() (*gorm.DB, *redis.Client) {
	// 1. PostgreSQL
	db, err := gorm.Open(postgres.Open(config.PostgresDSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	// 2. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr(),
		Password: "",
		DB:       0,
	})

	// Перевірка з'єднання Redis
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	return db, rdb
}

func main() {
	log.Println("Starting Pairline Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.FromEnv()

	// 1. Ініціалізація залежностей
	db, rdb := setupDependencies()
	s := storage.NewStorageService(db, rdb)

	// Міграції (таблиці + часткові унікальні індекси)
	if err := s.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database and Redis connections established, migrations complete.")

	// 2. Нотифікації: Redis завжди, Telegram — якщо є токен
	senders := []notify.Sender{&notify.RedisSender{Store: s}}
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegramSender(cfg.TelegramBotToken, s)
		if err != nil {
			log.Fatalf("Не вдалося запустити Telegram-бота: %v", err)
		}
		senders = append(senders, tg)
	}
	dispatcher := notify.NewDispatcher(senders...)

	// 3. Сервіси рушія
	rooms := room.NewService(s, dispatcher, cfg)
	proposals := proposal.NewService(s, rooms, dispatcher)
	gate := matching.NewGate(s, cfg)
	engine := matching.NewEngine(s, gate, proposals, cfg)
	scheduler := matching.NewScheduler(s, engine, cfg)

	// 4. Запуск основних Goroutines
	go dispatcher.Run()   // Доставка нотифікацій
	go scheduler.Run()    // Автоматичні проходи підбору
	go rooms.RunSweeper() // Закриття прострочених кімнат

	// 5. Налаштування Gin та роутингу
	r := gin.Default()
	h := handler.NewHandler(proposals, rooms, s, cfg.JWTSecret)
	h.Register(r)

	// Запуск HTTP-сервера
	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
