package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

type accountInfo struct {
	AccountID       string  `json:"account_id"`
	ComplexityIndex float64 `json:"complexity_index"`
	Energy          float64 `json:"energy"`
	Tier            int     `json:"tier"`
	ProblemsSolved  uint64  `json:"problems_solved"`
	TotalDifficulty float64 `json:"total_difficulty"`
}

type accountsDoc struct {
	LatestBlock string        `json:"latest_block"`
	Uncommitted int           `json:"uncommitted"`
	Accounts    []accountInfo `json:"accounts"`
}

var accountsCmd = &cobra.Command{
	Use:   "accounts [account]",
	Short: "Print the committed state of all accounts or one account.",
	Run:   accountsRun,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
}

func accountsRun(cmd *cobra.Command, args []string) {
	endpoint := fmt.Sprintf("%s/v1/accounts/list", url)
	if len(args) > 0 {
		endpoint = fmt.Sprintf("%s/v1/accounts/list/%s", url, args[0])
	}

	resp, err := http.Get(endpoint)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var doc accountsDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Latest block:", doc.LatestBlock)
	fmt.Println("Uncommitted :", doc.Uncommitted)
	for _, account := range doc.Accounts {
		fmt.Printf("%-24s tier %d  C=%.4f  E=%.2f  solved=%d  difficulty=%.2f\n",
			account.AccountID, account.Tier, account.ComplexityIndex, account.Energy,
			account.ProblemsSolved, account.TotalDifficulty)
	}
}
