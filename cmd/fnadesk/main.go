// Command fnadesk はFNAウィザードと面談受付のAPIサーバー・ワーカー・マイグレーションを起動する。
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/fnadesk/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
