package sync

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"praxsync/cmd/client/cmd/types"
	"praxsync/internal/app/client"
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизация с сервером",
	Long: `Без подкоманды выполняет полный цикл: отправку локальных правок,
затем получение изменений с сервера.

Изменения, которые не удалось отправить, остаются в очереди
и будут отправлены при следующей синхронизации.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		start := time.Now()
		pushed, pulled, err := app.Sync(cmd.Context())
		if types.JSONOutput(cmd) {
			if err != nil {
				return err
			}
			return types.PrintJSON(map[string]any{"push": pushed, "pull": pulled})
		}

		printPush(pushed)
		printPull(pulled)
		if err != nil {
			return syncError(err)
		}
		color.Green("Синхронизация завершена за %v", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Отправить очередь локальных правок",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		res, err := app.Push(cmd.Context())
		if types.JSONOutput(cmd) && err == nil {
			return types.PrintJSON(res)
		}
		printPush(res)
		if err != nil {
			return syncError(err)
		}
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Получить изменения с сервера",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		res, err := app.Pull(cmd.Context())
		if types.JSONOutput(cmd) && err == nil {
			return types.PrintJSON(res)
		}
		printPull(res)
		if err != nil {
			return syncError(err)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Показать состояние синхронизации",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		app.CheckConnection(cmd.Context())
		st := app.SyncStatus()
		if types.JSONOutput(cmd) {
			return types.PrintJSON(st)
		}

		fmt.Println("=== Статус синхронизации ===")
		fmt.Printf("Устройство:        %s\n", st.DeviceID)
		switch st.Reachability {
		case client.ReachabilityReachable:
			fmt.Printf("Сервер:            %s\n", color.GreenString("доступен"))
		case client.ReachabilityUnreachable:
			fmt.Printf("Сервер:            %s\n", color.RedString("недоступен"))
		default:
			fmt.Printf("Сервер:            %s\n", color.YellowString("неизвестно"))
		}
		pending := fmt.Sprintf("%d", st.Pending)
		if st.Pending > 0 {
			pending = color.YellowString(pending)
		}
		fmt.Printf("В очереди:         %s\n", pending)
		fmt.Printf("Версия сервера:    %d\n", st.Cursor)
		fmt.Printf("Последняя отправка: %s\n", types.Ago(st.LastPushAt))
		fmt.Printf("Последнее получение: %s\n", types.Ago(st.LastPullAt))
		if st.Message != "" {
			fmt.Printf("Последняя ошибка:  %s\n", color.RedString(st.Message))
		}
		return nil
	},
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Показать журнал конфликтов",
	Long: `Показывает последние конфликты, разрешенные сервером.
Для параметров и основных данных побеждает версия сервера,
для записей приема побеждает версия клиента.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		conflicts, err := app.Conflicts(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка чтения журнала конфликтов: %w", err)
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(conflicts)
		}
		if len(conflicts) == 0 {
			fmt.Println("Конфликтов нет")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ВРЕМЯ\tТИП\tID\tРЕШЕНИЕ\tВЕРСИЯ КЛИЕНТА\tВЕРСИЯ СЕРВЕРА")
		for _, c := range conflicts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
				types.FormatTime(c.RecordedAt), c.EntityType, c.EntityID, c.Resolution, c.ClientVersion, c.ServerVersion)
		}
		return w.Flush()
	},
}

func printPush(res *client.PushResult) {
	if res == nil {
		return
	}
	if res.Sent == 0 {
		fmt.Println("Очередь отправки пуста")
		return
	}
	fmt.Printf("Отправлено: %d, принято: %d, конфликтов: %d, ошибок: %d\n",
		res.Sent, res.Accepted, res.Conflicts, res.Errors)
	if res.Uploads > 0 {
		fmt.Printf("Загружено вложений: %d\n", res.Uploads)
	}
	if res.Retained > 0 {
		fmt.Printf("Осталось в очереди: %d\n", res.Retained)
	}
}

func printPull(res *client.PullResult) {
	if res == nil {
		return
	}
	fmt.Printf("Получено изменений: %d, пропущено: %d, версия: %d\n", res.Applied, res.Dropped, res.Cursor)
}

func syncError(err error) error {
	switch {
	case errors.Is(err, client.ErrSyncInProgress):
		color.Yellow("Синхронизация уже выполняется, повторите позже")
		return nil
	case errors.Is(err, client.ErrUnreachable):
		return fmt.Errorf("сервер недоступен, изменения сохранены в очереди: %w", err)
	default:
		return fmt.Errorf("ошибка синхронизации: %w", err)
	}
}

var discardCmd = &cobra.Command{
	Use:   "discard <entity-id>...",
	Short: "Удалить изменения из очереди без отправки",
	Long: `Убирает из очереди правки указанных сущностей. Используйте для
изменений, которые сервер постоянно отклоняет или оставляет
для ручного разбора. Локальные данные не меняются.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		removed, err := app.Discard(cmd.Context(), args...)
		if err != nil {
			return err
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(map[string]int{"discarded": removed})
		}
		if removed == 0 {
			fmt.Println("Указанных изменений в очереди нет")
			return nil
		}
		color.Yellow("Удалено из очереди: %d", removed)
		return nil
	},
}

func init() {
	SyncCmd.AddCommand(pushCmd, pullCmd, statusCmd, conflictsCmd, discardCmd)
}
