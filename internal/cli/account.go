package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/campe111/turnero/internal/client"
)

func (a *App) loginCommand() *Command {
	var email string
	return &Command{
		Name:    "login",
		Summary: "Iniciar sesión",
		Usage:   "turnero login --email EMAIL",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("login", pflag.ContinueOnError)
			flags.StringVar(&email, "email", "", "email de la cuenta")
			return flags
		},
		Run: func(ctx context.Context, _ *pflag.FlagSet, _ []string) error {
			reader := bufio.NewReader(a.In)
			var err error
			if email == "" {
				if email, err = a.promptLine(reader, "Email: "); err != nil {
					return err
				}
			}
			password, err := a.promptPassword(reader, "Contraseña: ")
			if err != nil {
				return err
			}
			result, err := a.Client.Login(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "Bienvenido, %s\n", result.User.Name)
			return nil
		},
	}
}

func (a *App) registerCommand() *Command {
	var name, email string
	return &Command{
		Name:    "register",
		Summary: "Crear una cuenta",
		Usage:   "turnero register --name NOMBRE --email EMAIL",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("register", pflag.ContinueOnError)
			flags.StringVar(&name, "name", "", "nombre completo")
			flags.StringVar(&email, "email", "", "email de la cuenta")
			return flags
		},
		Run: func(ctx context.Context, _ *pflag.FlagSet, _ []string) error {
			reader := bufio.NewReader(a.In)
			var err error
			if name == "" {
				if name, err = a.promptLine(reader, "Nombre: "); err != nil {
					return err
				}
			}
			if email == "" {
				if email, err = a.promptLine(reader, "Email: "); err != nil {
					return err
				}
			}
			password, err := a.promptPassword(reader, "Contraseña: ")
			if err != nil {
				return err
			}
			result, err := a.Client.Register(ctx, name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "Cuenta creada para %s\n", result.User.Email)
			return nil
		},
	}
}

func (a *App) whoamiCommand() *Command {
	return &Command{
		Name:    "whoami",
		Summary: "Mostrar el usuario de la sesión actual",
		Run: func(ctx context.Context, _ *pflag.FlagSet, _ []string) error {
			if !a.Session.IsAuthenticated() {
				return &client.APIError{Kind: client.ErrAuthentication, Message: "No hay sesión iniciada"}
			}
			user, err := a.Client.Me(ctx)
			if err != nil {
				return err
			}
			role := "usuario"
			if user.IsAdmin {
				role = "administrador"
			}
			fmt.Fprintf(a.Out, "%s <%s> (%s)\n", user.Name, user.Email, role)
			if expires, ok := a.Session.ExpiresAt(); ok {
				fmt.Fprintf(a.Out, "La sesión vence %s\n", expires.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func (a *App) logoutCommand() *Command {
	return &Command{
		Name:    "logout",
		Summary: "Cerrar sesión y borrar las credenciales guardadas",
		Run: func(_ context.Context, _ *pflag.FlagSet, _ []string) error {
			a.Client.Logout()
			fmt.Fprintln(a.Out, "Sesión cerrada")
			return nil
		},
	}
}

func (a *App) promptLine(reader *bufio.Reader, label string) (string, error) {
	fmt.Fprint(a.Err, label)
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo when stdin is a terminal and falls
// back to a plain line otherwise, so scripts can pipe the password in.
func (a *App) promptPassword(reader *bufio.Reader, label string) (string, error) {
	if file, ok := a.In.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fmt.Fprint(a.Err, label)
		password, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(a.Err)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(password), nil
	}
	return a.promptLine(reader, label)
}
