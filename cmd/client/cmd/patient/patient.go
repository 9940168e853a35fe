package patient

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"praxsync/cmd/client/cmd/types"
	"praxsync/internal/app/client"
	domain "praxsync/internal/domain/patient"
)

var PatientCmd = &cobra.Command{
	Use:   "patient",
	Short: "Карты пациентов",
}

var importCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Импортировать или обновить карту пациента",
	Long: `Читает карту пациента с анамнезом, курсами, визитами и счетами
из JSON файла. Изменившиеся записи ставятся в очередь отправки.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		p, err := app.ImportPatient(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Пациент %s %s (%s) сохранен, в очереди: %d\n",
			p.FirstName, p.LastName, p.ID, app.SyncStatus().Pending)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Показать карту пациента",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		p, err := app.GetPatient(cmd.Context(), args[0])
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("пациент %s не найден", args[0])
		}
		if err != nil {
			return err
		}
		return types.PrintJSON(p)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Список пациентов",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		patients, err := app.ListPatients(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка получения списка пациентов: %w", err)
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(patients)
		}
		if len(patients) == 0 {
			fmt.Println("Пациенты не найдены")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tФАМИЛИЯ\tИМЯ\tДАТА РОЖДЕНИЯ\tКУРСОВ\tСЧЕТОВ\tИЗМЕНЕН")
		for _, p := range patients {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				p.ID, p.LastName, p.FirstName, p.BirthDate, len(p.Therapies), len(p.Invoices), types.FormatTime(p.UpdatedAt))
		}
		return w.Flush()
	},
}

var ScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Расписание приема",
}

var scheduleImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Импортировать расписание",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		s, err := app.ImportSchedule(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Расписание %s сохранено, окон: %d\n", s.ID, len(s.Slots))
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "Показать расписания",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.AppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		schedules, err := app.ListSchedules(cmd.Context())
		if err != nil {
			return err
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(schedules)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "РАСПИСАНИЕ\tОКНО\tДЕНЬ\tС\tДО\tМЕСТО")
		for _, s := range schedules {
			for _, slot := range s.Slots {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", s.ID, slot.ID, slot.Weekday, slot.Start, slot.End, slot.Location)
			}
		}
		return w.Flush()
	},
}

func init() {
	PatientCmd.AddCommand(importCmd, showCmd, listCmd)
	ScheduleCmd.AddCommand(scheduleImportCmd, scheduleListCmd)
}
