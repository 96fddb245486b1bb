package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/helpdesk-io/helpdesk-ce/internal/config"
	"github.com/helpdesk-io/helpdesk-ce/internal/database"
	"github.com/helpdesk-io/helpdesk-ce/internal/lifecycle"
	"github.com/helpdesk-io/helpdesk-ce/internal/models"
	"github.com/helpdesk-io/helpdesk-ce/internal/repository"
	"github.com/helpdesk-io/helpdesk-ce/internal/sweeper"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "helpdesk",
	Short: "Help desk CLI - administration tool for the ticket tracker",
	Long: `Help Desk Command Line Interface

Utilities for managing a help desk installation: one-off archival sweeps,
access code resets and user provisioning.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Help Desk CLI %s\n", rootCmd.Version)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one archival sweep over aged closed tickets",
	RunE:  runSweep,
}

var resetCodeCmd = &cobra.Command{
	Use:   "reset-code",
	Short: "Regenerate a user's access code",
	Long: `Regenerate the access code for the user with the given email.
The new code is printed once; it reactivates the code and resets the send
counter.`,
	RunE: runResetCode,
}

var createTechnicianCmd = &cobra.Command{
	Use:   "create-technician",
	Short: "Provision a technician account",
	RunE:  runCreateTechnician,
}

var (
	emailFlag     string
	passwordFlag  string
	firstNameFlag string
	lastNameFlag  string
)

func init() {
	resetCodeCmd.Flags().StringVar(&emailFlag, "email", "", "Email of the user (required)")
	_ = resetCodeCmd.MarkFlagRequired("email")

	createTechnicianCmd.Flags().StringVar(&emailFlag, "email", "", "Email of the technician (required)")
	createTechnicianCmd.Flags().StringVar(&passwordFlag, "password", "", "Initial password (required)")
	createTechnicianCmd.Flags().StringVar(&firstNameFlag, "first-name", "", "First name")
	createTechnicianCmd.Flags().StringVar(&lastNameFlag, "last-name", "", "Last name")
	_ = createTechnicianCmd.MarkFlagRequired("email")
	_ = createTechnicianCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(resetCodeCmd)
	rootCmd.AddCommand(createTechnicianCmd)
}

func openDatabase() (*repository.UserRepository, *repository.TicketRepository, func(), error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}
	if err := config.Load(configPath); err != nil {
		return nil, nil, nil, err
	}
	cfg := config.Get()

	db, err := database.Open(database.Options{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Name:            cfg.Database.Name,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	logger := log.New(os.Stderr, "[CLI] ", log.LstdFlags)
	users := repository.NewUserRepository(db, logger)
	tickets := repository.NewTicketRepository(db, cfg.Ticket.NumberPrefix, logger)
	return users, tickets, func() { db.Close() }, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	_, tickets, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()

	cfg := config.Get()
	logger := log.New(os.Stderr, "[SWEEP] ", log.LstdFlags)
	engine := lifecycle.NewEngine(tickets, cfg.Ticket.ArchiveAfterDays, logger)
	sw := sweeper.New(tickets, engine, cfg.Ticket.ArchiveAfterDays, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	report, err := sw.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Archived %d tickets\n", report.ArchivedCount)
	if len(report.FailedTicketIDs) > 0 {
		fmt.Printf("Failed ticket IDs: %v\n", report.FailedTicketIDs)
	}
	return nil
}

func runResetCode(cmd *cobra.Command, args []string) error {
	users, _, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	user, err := users.GetByEmail(ctx, emailFlag)
	if err != nil {
		return fmt.Errorf("lookup user %s: %w", emailFlag, err)
	}

	code, err := users.RegenerateAccessCode(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("regenerate access code: %w", err)
	}

	fmt.Printf("New access code for %s: %s\n", emailFlag, code)
	return nil
}

func runCreateTechnician(cmd *cobra.Command, args []string) error {
	users, _, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()

	user := &models.User{
		Email:     emailFlag,
		FirstName: firstNameFlag,
		LastName:  lastNameFlag,
		Role:      models.RoleTechnician,
	}
	if err := user.SetPassword(passwordFlag); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if err := users.Create(ctx, user); err != nil {
		return fmt.Errorf("create technician: %w", err)
	}

	fmt.Printf("Created technician %s (id %d)\n", user.Email, user.ID)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
