package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/export"
	"quiz-attempt-service/internal/logger"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewGenerateCmd drafts questions from a text file into a new or existing quiz.
func NewGenerateCmd(configPath *string) *cobra.Command {
	var (
		quizID     string
		name       string
		timeLimit  int
		file       string
		count      int
		difficulty string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate quiz questions from a text file with the configured LLM",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			text, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), *configPath, func(ctx context.Context, svc serviceRunner) error {
				if quizID == "" {
					if name == "" {
						return fmt.Errorf("either --quiz or --name is required")
					}
					quiz, err := svc.CreateQuiz(ctx, name, timeLimit, domain.ScoringPolicy{})
					if err != nil {
						return err
					}
					quizID = quiz.ID
				}
				quiz, added, err := svc.GenerateQuestions(ctx, quizID, string(text), count, difficulty)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "quiz %s (%s): added %d questions, %d total\n", quiz.ID, quiz.Name, added, len(quiz.Questions))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "", "existing quiz id to extend")
	cmd.Flags().StringVar(&name, "name", "", "name of a new quiz to create")
	cmd.Flags().IntVar(&timeLimit, "time-limit", 10, "time limit in minutes for a new quiz")
	cmd.Flags().StringVar(&file, "file", "", "text file to draw questions from")
	cmd.Flags().IntVar(&count, "count", 5, "number of questions to request")
	cmd.Flags().StringVar(&difficulty, "difficulty", "Medium", "Easy, Medium or Hard")
	return cmd
}

// NewExportCmd writes ledger results as JSON or an Excel workbook.
func NewExportCmd(configPath *string) *cobra.Command {
	var (
		quizID string
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded results",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), *configPath, func(ctx context.Context, svc serviceRunner) error {
				results, err := svc.Results(ctx, quizID)
				if err != nil {
					return err
				}
				doc := export.Build(quizID, results, time.Now())

				var w io.Writer = cmd.OutOrStdout()
				if out != "" && out != "-" {
					file, err := os.Create(out)
					if err != nil {
						return err
					}
					defer file.Close()
					w = file
				}
				if err := export.Write(w, f, doc); err != nil {
					return err
				}
				if out != "" && out != "-" {
					fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d results to %s\n", doc.Count, out)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "", "limit the export to one quiz")
	cmd.Flags().StringVar(&format, "format", "json", "json or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

// NewHashPasswordCmd prints a bcrypt hash for admin.password_hash. The
// password comes from the first argument or the first line of stdin.
func NewHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Hash an admin password for the config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return fmt.Errorf("password must not be empty")
			}
			hash, err := transport.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// serviceRunner is the slice of the quiz service the offline commands use.
type serviceRunner interface {
	CreateQuiz(ctx context.Context, name string, timeLimitMinutes int, policy domain.ScoringPolicy) (domain.Quiz, error)
	GenerateQuestions(ctx context.Context, quizID, text string, count int, difficulty string) (domain.Quiz, int, error)
	Results(ctx context.Context, quizID string) ([]domain.Result, error)
}

func withService(ctx context.Context, configPath string, fn func(context.Context, serviceRunner) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, newService(cfg, b, log))
}
