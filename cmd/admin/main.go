package main

import (
	"fmt"
	"log"
	"os"

	"pairline/backend/internal/config"
	"pairline/backend/internal/matching"
	"pairline/backend/internal/models"
	"pairline/backend/internal/notify"
	"pairline/backend/internal/proposal"
	"pairline/backend/internal/room"
	"pairline/backend/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	db, err := gorm.Open(postgres.Open(config.PostgresDSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	cfg := config.FromEnv()
	s := storage.NewStorageService(db, nil) // No redis needed for admin CLI

	dispatcher := notify.NewDispatcher() // Без sender'ів: лише стани
	go dispatcher.Run()

	rooms := room.NewService(s, dispatcher, cfg)
	proposals := proposal.NewService(s, rooms, dispatcher)

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run-pass":
		gate := matching.NewGate(s, cfg)
		engine := matching.NewEngine(s, gate, proposals, cfg)
		run, err := engine.RunPass()
		if err != nil {
			log.Fatalf("Error running matching pass: %v", err)
		}
		fmt.Printf("Pass finished: %d profiles, %d proposals, %d skipped, %d failed\n",
			run.ProfilesProcessed, run.ProposalsCreated, run.Skipped, run.Failed)
	case "cancel-proposal":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin cancel-proposal <proposal_id> [reason]")
			os.Exit(1)
		}
		reason := ""
		if len(os.Args) > 3 {
			reason = os.Args[3]
		}
		if _, err := proposals.Cancel(os.Args[2], reason); err != nil {
			log.Fatalf("Error cancelling proposal: %v", err)
		}
		fmt.Printf("Proposal %s has been cancelled.\n", os.Args[2])
	case "close-room":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin close-room <room_id>")
			os.Exit(1)
		}
		if err := rooms.Close(os.Args[2], models.CloseReasonAdmin); err != nil {
			log.Fatalf("Error closing room: %v", err)
		}
		fmt.Printf("Room %s has been closed.\n", os.Args[2])
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}
