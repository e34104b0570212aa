package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	btls "github.com/psantana5/buildtime-profiler/pkg/tls"
)

var (
	certFile  string
	keyFile   string
	certHosts []string
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Generate a self-signed certificate for the ingestion server",
	Long: `Writes a self-signed certificate and key for local use of "btprof serve".
Point server.tls_cert and server.tls_key (or --tls-cert/--tls-key) at the
result; orchestrators trust it by using the certificate as their CA.`,
	Args: cobra.NoArgs,
	RunE: runCert,
}

func init() {
	rootCmd.AddCommand(certCmd)

	certCmd.Flags().StringVar(&certFile, "cert", "certs/btprof.crt", "certificate output file")
	certCmd.Flags().StringVar(&keyFile, "key", "certs/btprof.key", "key output file")
	certCmd.Flags().StringSliceVar(&certHosts, "host", nil, "extra IP addresses or hostnames for the certificate SANs")
}

func runCert(cmd *cobra.Command, args []string) error {
	for _, path := range []string{certFile, keyFile} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create certificate directory: %w", err)
		}
	}
	if err := btls.GenerateSelfSigned(certFile, keyFile, "btprof", certHosts...); err != nil {
		return err
	}
	logger.Info("Certificate generated", map[string]interface{}{
		"cert":  certFile,
		"key":   keyFile,
		"hosts": certHosts,
	})
	return nil
}
