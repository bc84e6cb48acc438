package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/quickchat/todo-triage/internal/core"
	"github.com/quickchat/todo-triage/internal/di"
	"go.uber.org/zap"
)

// inputMessage is the JSON shape of one inbound message
type inputMessage struct {
	ID            string    `json:"id"`
	Sender        string    `json:"sender"`
	Subject       string    `json:"subject"`
	Content       string    `json:"content"`
	Platform      string    `json:"platform"`
	Date          time.Time `json:"date"`
	RecipientType string    `json:"recipient_type"`
}

func main() {
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	service *core.SynthesisService,
	selector *core.Top3Selector,
) error {
	defer logger.Sync()
	ctx := context.Background()

	// Apply a rule instruction before synthesis if one was given
	if flags.RuleText != "" || flags.ResetRules {
		message, description, err := selector.ApplyNaturalLanguageRules(ctx, flags.RuleText, flags.ResetRules)
		if err != nil {
			logger.Error("Failed to apply rule instruction", zap.Error(err))
		} else {
			fmt.Println(message)
			fmt.Println(description)
			fmt.Println()
		}
	}

	messages, err := readMessages(flags.InputFile, logger)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		fmt.Println("No messages to analyze.")
		return nil
	}

	result, cached, err := service.Analyze(ctx, core.AnalysisRequest{
		PersonaID:   flags.PersonaName,
		PersonaName: flags.PersonaName,
		UserEmail:   flags.UserEmail,
		DataVersion: time.Now().Format("20060102150405"),
		Messages:    messages,
	})
	if err != nil {
		return err
	}

	printResult(result, cached)
	return nil
}

// readMessages loads the input JSON from a file or stdin
func readMessages(inputFile string, logger *zap.Logger) ([]core.Message, error) {
	var reader io.Reader
	if inputFile != "" {
		file, err := os.Open(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		reader = file
		logger.Info("Reading messages from file", zap.String("file", inputFile))
	} else {
		reader = os.Stdin
		logger.Info("Reading messages from stdin")
	}

	var raw []inputMessage
	if err := json.NewDecoder(reader).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode input messages: %w", err)
	}

	messages := make([]core.Message, 0, len(raw))
	for _, m := range raw {
		platform := core.PlatformMessenger
		if m.Platform == "email" {
			platform = core.PlatformEmail
		}
		recipientType := core.RecipientType(m.RecipientType)
		if recipientType == "" {
			recipientType = core.RecipientTo
		}
		messages = append(messages, core.Message{
			ID:            m.ID,
			Sender:        m.Sender,
			Subject:       m.Subject,
			Content:       m.Content,
			Platform:      platform,
			Date:          m.Date,
			RecipientType: recipientType,
		})
	}
	return messages, nil
}

func printResult(result *core.CachedResult, cached bool) {
	if cached {
		fmt.Println("(served from cache)")
	}
	s := result.Summary
	fmt.Printf("Messages analyzed: %d (%d email, %d chat)\n", s.TotalMessages, s.EmailCount, s.ChatCount)
	fmt.Printf("Todo items: %d (high %d / medium %d / low %d)\n\n",
		s.TodoCount, s.HighPriorityCount, s.MediumPriorityCount, s.LowPriorityCount)

	for _, todo := range result.Todos {
		marker := "  "
		if todo.IsTop3 {
			marker = "★ "
		}
		deadline := "no deadline"
		if todo.Deadline != nil {
			deadline = todo.Deadline.Format("2006-01-02 15:04")
		}
		fmt.Printf("%s[%s] %s\n", marker, todo.Priority, todo.Title)
		fmt.Printf("    from %s · %s · %s\n", todo.Requester, todo.ActionType, deadline)
	}
}
