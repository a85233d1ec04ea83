// Package cli is the turnero console: kiosk, staff and session commands
// over the client and panel packages.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/campe111/turnero/internal/client"
	"github.com/campe111/turnero/internal/clock"
	"github.com/campe111/turnero/internal/lifecycle"
	"github.com/campe111/turnero/internal/models"
	"github.com/campe111/turnero/internal/panel"
	"github.com/campe111/turnero/internal/query"
	"github.com/campe111/turnero/internal/session"
)

type App struct {
	Client          *client.Client
	Session         *session.Session
	Logger          *zap.Logger
	Clock           clock.Clock
	RefreshInterval time.Duration

	In  io.Reader
	Out io.Writer
	Err io.Writer

	panel *panel.Panel
}

// Execute runs the command line in args (without the program name).
func (a *App) Execute(ctx context.Context, args []string) error {
	return a.Root().Execute(ctx, a.Err, args)
}

func (a *App) Root() *Command {
	return &Command{
		Name:    "turnero",
		Summary: "Consola de turnos: sacar turnos, atenderlos y ver el tablero.",
		Subcommands: []*Command{
			a.categoriesCommand(),
			a.ticketsCommand(),
			a.ticketCommand(),
			a.takeCommand(),
			a.transitionCommand(lifecycle.ActionStart, "Iniciar la atención de un turno en espera"),
			a.transitionCommand(lifecycle.ActionComplete, "Completar un turno en atención"),
			a.transitionCommand(lifecycle.ActionCancel, "Cancelar un turno en espera o en atención"),
			a.statsCommand(),
			a.loginCommand(),
			a.registerCommand(),
			a.whoamiCommand(),
			a.logoutCommand(),
			a.boardCommand(),
		},
	}
}

// Panel builds the staff board on first use.
func (a *App) Panel(opts panel.Options) *panel.Panel {
	if a.panel == nil {
		if opts.Interval <= 0 {
			opts.Interval = a.RefreshInterval
		}
		if opts.Clock == nil {
			opts.Clock = a.Clock
		}
		if opts.Logger == nil {
			opts.Logger = a.Logger
		}
		a.panel = panel.New(a.Client, a.Session, opts)
	}
	return a.panel
}

func (a *App) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *App) categoriesCommand() *Command {
	return &Command{
		Name:    "categories",
		Summary: "Listar las categorías de atención",
		Run: func(ctx context.Context, _ *pflag.FlagSet, _ []string) error {
			categories, err := a.Client.ListCategories(ctx)
			if err != nil {
				return err
			}
			renderCategories(a.Out, categories)
			return nil
		},
	}
}

func (a *App) ticketsCommand() *Command {
	var state string
	var categoryID int64
	return &Command{
		Name:    "tickets",
		Summary: "Listar turnos, opcionalmente filtrados",
		Usage:   "turnero tickets [--state esperando|en_atencion|completado|cancelado] [--category ID]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("tickets", pflag.ContinueOnError)
			flags.StringVar(&state, "state", "", "estado a filtrar")
			flags.Int64Var(&categoryID, "category", 0, "id de categoría a filtrar")
			return flags
		},
		Run: func(ctx context.Context, _ *pflag.FlagSet, _ []string) error {
			tickets, err := a.Client.ListTickets(ctx, client.TicketFilter{State: state, CategoryID: categoryID})
			if err != nil {
				return err
			}
			renderTickets(a.Out, tickets)
			return nil
		},
	}
}

func (a *App) ticketCommand() *Command {
	return &Command{
		Name:    "ticket",
		Summary: "Ver el detalle de un turno",
		Usage:   "turnero ticket ID",
		Run: func(ctx context.Context, _ *pflag.FlagSet, args []string) error {
			id, err := parseID(args)
			if err != nil {
				return err
			}
			ticket, err := a.Client.GetTicket(ctx, id)
			if err != nil {
				return err
			}
			renderTicket(a.Out, ticket)
			return nil
		},
	}
}

func (a *App) takeCommand() *Command {
	return &Command{
		Name:    "take",
		Summary: "Sacar un turno para una categoría",
		Usage:   "turnero take CATEGORY_ID",
		Run: func(ctx context.Context, _ *pflag.FlagSet, args []string) error {
			categoryID, err := parseID(args)
			if err != nil {
				return err
			}
			ticket, err := a.Panel(panel.Options{}).Take(ctx, categoryID)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "Turno #%d generado exitosamente\n", ticket.Number)
			renderTicket(a.Out, ticket)
			return nil
		},
	}
}

func (a *App) transitionCommand(action, summary string) *Command {
	return &Command{
		Name:    action,
		Summary: summary,
		Usage:   "turnero " + action + " TICKET_ID",
		Run: func(ctx context.Context, _ *pflag.FlagSet, args []string) error {
			id, err := parseID(args)
			if err != nil {
				return err
			}
			p := a.Panel(panel.Options{})
			var result models.ActionResult
			switch action {
			case lifecycle.ActionStart:
				result, err = p.Start(ctx, id)
			case lifecycle.ActionComplete:
				result, err = p.Complete(ctx, id)
			default:
				result, err = p.Cancel(ctx, id)
			}
			if err != nil {
				return err
			}
			message := result.Message
			if message == "" {
				message = "Acción realizada"
			}
			fmt.Fprintln(a.Out, message)
			if result.Ticket != nil {
				renderTicket(a.Out, *result.Ticket)
			}
			return nil
		},
	}
}

func (a *App) statsCommand() *Command {
	return &Command{
		Name:    "stats",
		Summary: "Ver las estadísticas del día",
		Run: func(ctx context.Context, _ *pflag.FlagSet, _ []string) error {
			stats, err := a.Client.GetStatistics(ctx)
			if err != nil {
				return err
			}
			renderStatistics(a.Out, stats)
			return nil
		},
	}
}

func (a *App) boardCommand() *Command {
	var watch bool
	return &Command{
		Name:    "board",
		Summary: "Tablero del administrador",
		Usage:   "turnero board [--watch]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("board", pflag.ContinueOnError)
			flags.BoolVarP(&watch, "watch", "w", false, "refrescar el tablero hasta Ctrl-C")
			return flags
		},
		Run: func(ctx context.Context, _ *pflag.FlagSet, _ []string) error {
			if !watch {
				renderBoard(a.Out, a.Panel(panel.Options{}).Board(ctx))
				return nil
			}
			return a.watchBoard(ctx)
		},
	}
}

// watchBoard redraws the board after every scheduler cycle until ctx is
// cancelled.
func (a *App) watchBoard(ctx context.Context) error {
	var p *panel.Panel
	redraw := func() {
		fmt.Fprint(a.Out, "\033[H\033[2J")
		renderBoard(a.Out, p.Board(ctx))
	}
	p = a.Panel(panel.Options{
		Refreshed: func(_ []query.Key, err error) {
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				a.logger().Debug("board refresh", zap.Error(err))
			}
			redraw()
		},
	})
	redraw()
	err := p.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, &client.APIError{Kind: client.ErrValidation, Message: "se espera exactamente un ID"}
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &client.APIError{Kind: client.ErrValidation, Message: fmt.Sprintf("ID inválido: %q", args[0])}
	}
	return id, nil
}

// Describe renders err for the terminal.
func Describe(err error) string {
	if errors.Is(err, panel.ErrActionInFlight) {
		return "La acción ya está en curso, esperá la respuesta"
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return client.Describe(err)
	}
	return err.Error()
}
