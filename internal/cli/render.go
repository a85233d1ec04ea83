package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/campe111/turnero/internal/models"
	"github.com/campe111/turnero/internal/panel"
)

var stateLabels = map[string]string{
	models.StateWaiting:   "En Espera",
	models.StateInService: "En Atención",
	models.StateCompleted: "Completado",
	models.StateCancelled: "Cancelado",
}

var stateColors = map[string]lipgloss.Color{
	models.StateWaiting:   lipgloss.Color("3"),
	models.StateInService: lipgloss.Color("4"),
	models.StateCompleted: lipgloss.Color("2"),
	models.StateCancelled: lipgloss.Color("1"),
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Faint(true)
)

// StateLabel is the Spanish label shown for an estado value; unknown
// values pass through unchanged.
func StateLabel(state string) string {
	if label, ok := stateLabels[state]; ok {
		return label
	}
	return state
}

func stateBadge(state string) string {
	style := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	if color, ok := stateColors[state]; ok {
		style = style.Foreground(color)
	}
	return style.Render(StateLabel(state))
}

func formatClock(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("15:04")
}

func renderTicket(w io.Writer, ticket models.Ticket) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render(fmt.Sprintf("Turno #%d", ticket.Number)), stateBadge(ticket.State))
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  id\t%d\n", ticket.ID)
	fmt.Fprintf(tw, "  categoría\t%s\n", ticket.CategoryName)
	fmt.Fprintf(tw, "  creado\t%s\n", ticket.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(tw, "  hora estimada\t%s\n", formatClock(ticket.EstimatedTime))
	fmt.Fprintf(tw, "  inicio\t%s\n", formatClock(ticket.StartedAt))
	fmt.Fprintf(tw, "  fin\t%s\n", formatClock(ticket.CompletedAt))
	tw.Flush()
}

func renderTickets(w io.Writer, tickets []models.Ticket) {
	if len(tickets) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No hay turnos"))
		return
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNÚMERO\tCATEGORÍA\tESTADO\tESTIMADO")
	for _, ticket := range tickets {
		fmt.Fprintf(tw, "%d\t#%d\t%s\t%s\t%s\n", ticket.ID, ticket.Number, ticket.CategoryName, stateBadge(ticket.State), formatClock(ticket.EstimatedTime))
	}
	tw.Flush()
}

func renderCategories(w io.Writer, categories []models.Category) {
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNOMBRE\tMINUTOS\tDESCRIPCIÓN")
	for _, category := range categories {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", category.ID, category.Name, category.EstimatedMinutes, category.Description)
	}
	tw.Flush()
}

func renderStatistics(w io.Writer, stats models.Statistics) {
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total\t%d\n", stats.Total)
	fmt.Fprintf(tw, "%s\t%d\n", StateLabel(models.StateWaiting), stats.Waiting)
	fmt.Fprintf(tw, "%s\t%d\n", StateLabel(models.StateInService), stats.InService)
	fmt.Fprintf(tw, "%s\t%d\n", StateLabel(models.StateCompleted), stats.Completed)
	fmt.Fprintf(tw, "%s\t%d\n", StateLabel(models.StateCancelled), stats.Cancelled)
	tw.Flush()
}

func renderBoard(w io.Writer, board panel.Board) {
	fmt.Fprintln(w, titleStyle.Render("Estadísticas"))
	if board.Stats.Available {
		renderStatistics(w, board.Stats.Data)
	} else {
		fmt.Fprintln(w, mutedStyle.Render("Sin datos disponibles"))
	}
	renderSection(w, "Turnos en espera", board.Waiting)
	renderSection(w, "Turnos en atención", board.InService)
}

func renderSection(w io.Writer, title string, section panel.Section[[]panel.TicketView]) {
	fmt.Fprintf(w, "\n%s\n", titleStyle.Render(title))
	if !section.Available {
		fmt.Fprintln(w, mutedStyle.Render("Sin datos disponibles"))
		return
	}
	if len(section.Data) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No hay turnos"))
		return
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	for _, view := range section.Data {
		fmt.Fprintf(tw, "%d\t#%d\t%s\t%s\t%s\n", view.ID, view.Number, view.CategoryName, stateBadge(view.State), actionHints(view))
	}
	tw.Flush()
}

func actionHints(view panel.TicketView) string {
	var actions []string
	if view.CanStart {
		actions = append(actions, "start")
	}
	if view.CanComplete {
		actions = append(actions, "complete")
	}
	if view.CanCancel {
		actions = append(actions, "cancel")
	}
	return mutedStyle.Render(strings.Join(actions, " | "))
}
