// Command wsclient подключается к WebSocket серверу, печатает входящие
// сообщения и отправляет строки из stdin.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const svcName = "wsclient"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           svcName,
		Short:         "Callback based WebSocket client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newConnectCmd(), newEchoCmd())

	if err := root.ExecuteContext(ctx); err != nil {
		log.Printf("%s: %s", svcName, err)
		stop()
		os.Exit(1)
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
