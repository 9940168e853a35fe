package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"praxsync/internal/app/client"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Управление токеном доступа к серверу",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Сохранить токен доступа",
	Long: `Запрашивает токен доступа к серверу синхронизации и сохраняет его
в файл с правами 0600. Токен выдает администратор сервера.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Print("Введите токен: ")
		token, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("ошибка чтения токена: %w", err)
		}
		fmt.Println()

		if err := a.SaveToken(string(token)); err != nil {
			return err
		}

		switch a.CheckConnection(cmd.Context()) {
		case client.ReachabilityReachable:
			color.Green("Токен сохранен, сервер доступен")
		default:
			color.Yellow("Токен сохранен, но сервер сейчас недоступен")
		}
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd)
}
