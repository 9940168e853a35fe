package params

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"praxsync/cmd/client/cmd/types"
	"praxsync/internal/app/client"
	"praxsync/internal/domain/entity"
)

var paramType string

var ParamsCmd = &cobra.Command{
	Use:   "params",
	Short: "Параметры практики",
	Long: `Виды терапии, коды МКБ, настройки и справочники.
Хранятся в YAML файлах и синхронизируются с сервером.`,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Показать параметры",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		typ := entity.Type(paramType)
		if typ != "" && typ.Category() != entity.CategoryParameter {
			return fmt.Errorf("%s не является типом параметров", paramType)
		}

		items := app.ListParams(typ)
		if types.JSONOutput(cmd) {
			return types.PrintJSON(items)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ТИП\tID\tПОЛЯ")
		for _, it := range items {
			data, err := json.Marshal(it.Fields.WithoutShape())
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", it.EntityType, it.EntityID, data)
		}
		return w.Flush()
	},
}

var setCmd = &cobra.Command{
	Use:     "set <type> <id> <json>",
	Short:   "Изменить параметр",
	Example: `  praxsync params set treatmentType tt-kg '{"name":"Krankengymnastik","durationMinutes":20}'`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		fields, err := entity.DecodeFields([]byte(args[2]))
		if err != nil {
			return fmt.Errorf("ошибка разбора полей: %w", err)
		}
		if err := app.SetParam(cmd.Context(), entity.Type(args[0]), args[1], fields); err != nil {
			return err
		}
		fmt.Printf("Параметр %s/%s сохранен, в очереди: %d\n", args[0], args[1], app.SyncStatus().Pending)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&paramType, "type", "", "тип параметров")
	ParamsCmd.AddCommand(listCmd, setCmd)
}
