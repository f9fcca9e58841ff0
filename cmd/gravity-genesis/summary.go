package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/gravity-chain/gravity-genesis/genesis"
	"github.com/gravity-chain/gravity-genesis/tracing"
)

// printSummary renders one row per deployed contract.
func printSummary(w io.Writer, res *genesis.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Contract", "Deployed at", "Genesis address", "Init code", "Gas"})
	for i, c := range res.Plan.Contracts {
		var gas string
		if i < len(res.Results) {
			gas = strconv.FormatUint(res.Results[i].GasUsed, 10)
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			c.Name,
			c.Address.Hex(),
			c.Final.Hex(),
			fmt.Sprintf("%d bytes", c.CodeSize),
			gas,
		})
	}
	table.Render()
	fmt.Fprintf(w, "%d accounts, %d contract codes\n", len(res.Allocation.Accounts), len(res.Allocation.Codes))
}

// printChecks renders the verification outcomes.
func printChecks(w io.Writer, checks []*genesis.Check) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Check", "Contract", "Status", "Detail"})
	for _, c := range checks {
		status, detail := "ok", c.Summary
		if !c.Passed() {
			status, detail = "FAILED", c.Err.Error()
		} else if c.Result != nil {
			detail = fmt.Sprintf("%s (%s)", detail, tracing.Classify(c.Result))
		}
		table.Append([]string{c.Name, c.Target, status, detail})
	}
	table.Render()
}
