package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"praxsync/cmd/client/cmd/params"
	"praxsync/cmd/client/cmd/patient"
	"praxsync/cmd/client/cmd/sync"
	"praxsync/internal/app/client"
	"praxsync/internal/app/client/config"
	"praxsync/internal/utils/logger"
)

var (
	app        *client.App
	debug      bool
	jsonOutput bool
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:   "praxsync",
	Short: "praxsync - офлайн клиент картотеки практики",
	Long: `praxsync хранит карты пациентов, расписание и параметры практики
локально и синхронизирует их с сервером, когда он доступен.

Все правки сначала попадают в локальную очередь и отправляются
автоматически или командой sync push.`,
	PersistentPreRunE: setupApp,
	PersistentPostRun: shutdownApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}

	env := cfg.Env
	if debug {
		env = config.EnvLocal
	}
	log := logger.New(env)
	if !debug && cmd.Name() != runCmd.Name() {
		// разовые команды пишут только предупреждения
		log = slog.New(discardBelowWarn{log.Handler()})
	}

	app, err = client.New(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(client.WithApp(cmd.Context(), app))
	return nil
}

func shutdownApp(_ *cobra.Command, _ []string) {
	if app != nil {
		app.Shutdown()
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера синхронизации")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(sync.SyncCmd)
	rootCmd.AddCommand(patient.PatientCmd)
	rootCmd.AddCommand(patient.ScheduleCmd)
	rootCmd.AddCommand(params.ParamsCmd)
}
