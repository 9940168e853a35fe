package types

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// JSONOutput сообщает, запрошен ли вывод в формате JSON
func JSONOutput(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("json")
	return err == nil && v
}

// PrintJSON печатает значение с отступами
func PrintJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatTime печатает время в локальной зоне или прочерк для нулевого
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("02.01.2006 15:04:05")
}

// Ago печатает время вместе с давностью
func Ago(t time.Time) string {
	if t.IsZero() {
		return "никогда"
	}
	return fmt.Sprintf("%s (%s назад)", FormatTime(t), time.Since(t).Round(time.Second))
}
