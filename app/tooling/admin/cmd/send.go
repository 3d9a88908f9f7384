package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <from> <to> <amount>",
	Short: "Queue an energy transfer between two accounts.",
	Args:  cobra.ExactArgs(3),
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func sendRun(cmd *cobra.Command, args []string) {
	amount, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		log.Fatal(err)
	}

	body, err := json.Marshal(map[string]any{
		"from_id": args[0],
		"to_id":   args[1],
		"amount":  amount,
	})
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/transfer/submit", url), "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
}
