package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var (
	solveDifficulty float64
	solveDomains    string
)

var solveCmd = &cobra.Command{
	Use:   "solve <account-id> <problem-id> <solution-text>",
	Short: "Submit a solution for validation and evolution.",
	Args:  cobra.ExactArgs(3),
	Run:   solveRun,
}

func init() {
	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().Float64VarP(&solveDifficulty, "difficulty", "d", 0.5, "Problem difficulty in [0,1].")
	solveCmd.Flags().StringVarP(&solveDomains, "domains", "m", "mathematics", "Comma separated problem domains.")
}

func solveRun(cmd *cobra.Command, args []string) {
	body, err := json.Marshal(map[string]any{
		"account_id": args[0],
		"problem_id": args[1],
		"difficulty": solveDifficulty,
		"domains":    strings.Split(solveDomains, ","),
		"solution":   args[2],
	})
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/solution/submit", url), "application/json", bytes.NewReader(body))
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
