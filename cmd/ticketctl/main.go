// Command ticketctl is a terminal client for the support desk API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/client"
	"github.com/spec-kit/support-desk/internal/clientsync"
	"github.com/spec-kit/support-desk/internal/domain"
)

var (
	serverFlag  string
	tokenFlag   string
	timeoutFlag time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "ticketctl",
	Short:         "Follow and update support tickets from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var loginCmd = &cobra.Command{
	Use:   "login <email> <password>",
	Short: "Log in and print a token for SUPPORT_DESK_TOKEN",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newAPI().Login(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(res.Token)
		return nil
	},
}

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "List visible tickets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tickets, err := authedAPI().ListTickets(cmd.Context())
		if err != nil {
			return err
		}
		for _, t := range tickets {
			fmt.Printf("#%d\t%-11s\t%-6s\t%s\n", t.ID, t.Status, t.Priority, t.Title)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <ticket-id> <message>",
	Short: "Post a message to a ticket",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ticketArg(args[0])
		if err != nil {
			return err
		}
		msg, err := authedAPI().PostMessage(cmd.Context(), id, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("message %d posted\n", msg.ID)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <ticket-id> <OPEN|IN_PROGRESS|RESOLVED>",
	Short: "Change a ticket's status (admins only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ticketArg(args[0])
		if err != nil {
			return err
		}
		ticket, err := authedAPI().UpdateStatus(cmd.Context(), id, strings.ToUpper(args[1]))
		if err != nil {
			return err
		}
		fmt.Printf("#%d is now %s\n", ticket.ID, ticket.Status)
		return nil
	},
}

var reconcileFlag time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <ticket-id>",
	Short: "Join a ticket room and print messages as they arrive",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", envOr("SUPPORT_DESK_URL", "http://localhost:3001"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", os.Getenv("SUPPORT_DESK_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 15*time.Second, "HTTP request timeout")
	watchCmd.Flags().DurationVar(&reconcileFlag, "reconcile", client.DefaultReconcileInterval, "Refetch interval")

	rootCmd.AddCommand(loginCmd, ticketsCmd, sendCmd, statusCmd, watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	id, err := ticketArg(args[0])
	if err != nil {
		return err
	}
	api := authedAPI()
	socket, err := client.Dial(cmd.Context(), api.BaseURL(), api.Token())
	if err != nil {
		return err
	}
	defer socket.Close()

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	printer := newViewPrinter()
	watcher := client.NewWatcher(api, socket, id, reconcileFlag, logger)
	watcher.OnChange(printer.print)

	err = watcher.Run(cmd.Context())
	if client.IsAuthRejected(err) {
		return fmt.Errorf("token rejected, log in again: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// viewPrinter prints each confirmed message once and announces status changes.
type viewPrinter struct {
	seen   map[int64]bool
	status domain.TicketStatus
}

func newViewPrinter() *viewPrinter {
	return &viewPrinter{seen: make(map[int64]bool)}
}

func (p *viewPrinter) print(view *clientsync.TicketView) {
	if ticket, ok := view.Ticket(); ok && ticket.Status != p.status {
		if p.status == "" {
			fmt.Printf("#%d %s [%s]\n", ticket.ID, ticket.Title, ticket.Status)
		} else {
			fmt.Printf("-- status: %s -> %s\n", p.status, ticket.Status)
		}
		p.status = ticket.Status
	}
	for _, entry := range view.Messages() {
		if entry.Pending() || p.seen[entry.ID] {
			continue
		}
		p.seen[entry.ID] = true
		printMessage(entry.MessageResponse)
	}
}

func printMessage(m dto.MessageResponse) {
	fmt.Printf("[%s] %s (%s): %s\n", m.CreatedAt.Local().Format("15:04:05"), m.SenderEmail, m.SenderRole, m.Content)
}

func newAPI() *client.Client {
	return client.New(serverFlag, timeoutFlag)
}

func authedAPI() *client.Client {
	api := newAPI()
	api.SetToken(tokenFlag)
	return api
}

func ticketArg(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ticket id %q", raw)
	}
	return id, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
