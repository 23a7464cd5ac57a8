package main

import (
	"context"
	"fmt"

	"github.com/trezcool/schoolhub/core/billing"
)

// generate creates the records of a billing cycle, the same way the admin endpoints do.
func (cli *commandLine) generate(kind billing.Kind, gr billing.GenerateRequest) (int, error) {
	if !kind.IsValid() {
		return 0, billing.ErrInvalidKind
	}
	if err := gr.Validate(cli.validate); err != nil {
		return 0, err
	}
	title, err := gr.CycleTitle(kind, cli.billingSvc.Now())
	if err != nil {
		return 0, err
	}

	n, err := cli.billingSvc.GenerateCycle(context.Background(), kind, title)
	if err != nil {
		return 0, err
	}
	fmt.Printf("%s: %d %s records created\n", title, n, kind)
	return n, nil
}
