package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	log := logrus.New()
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd := &cobra.Command{Use: "meshpay", Short: "offline-capable mesh payment settlement node"}
	rootCmd.PersistentFlags().String("config", "", "path to node config YAML")

	rootCmd.AddCommand(runCmd(log))
	rootCmd.AddCommand(neighborsCmd())
	rootCmd.AddCommand(bufferedCmd())
	rootCmd.AddCommand(committeeCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
