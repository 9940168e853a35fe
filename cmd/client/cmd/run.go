package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"praxsync/internal/app/client"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Запустить фоновую синхронизацию",
	Long: `Команда run держит клиент запущенным: проверяет связь с сервером,
отправляет локальные правки после короткой паузы и периодически
забирает изменения с сервера. Остановка по Ctrl+C.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		color.Green("Синхронизация запущена, устройство %s", a.SyncStatus().DeviceID)
		return a.Run(cmd.Context())
	},
}
