package sqlauthz_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/cfeenstra67/sqlauthz/sqlauthz"
)

// ExampleCompile demonstrates compiling rule files against a database and
// printing the resulting SQL script.
func ExampleCompile() {
	ctx := context.Background()

	plan, err := sqlauthz.Compile(ctx, sqlauthz.CompileOptions{
		DatabaseConfig: sqlauthz.DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "myapp",
			User:     "postgres",
			Password: "password",
		},
		Rules: []string{"rules/*.rego"},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(plan.Script)
}

// ExampleApply demonstrates compiling and executing rules in one operation.
func ExampleApply() {
	ctx := context.Background()

	err := sqlauthz.Apply(ctx, sqlauthz.ApplyOptions{
		CompileOptions: sqlauthz.CompileOptions{
			DatabaseConfig: sqlauthz.DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "myapp",
				User:     "postgres",
				Password: "password",
			},
			Rules:    []string{"rules/*.rego"},
			VarFiles: []string{"vars/teams.yaml"},
		},
		AutoApprove: true,
		LockTimeout: "30s",
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Permissions applied.")
}

// ExampleClient demonstrates using the Client API for more control over
// how a plan is compiled and executed.
func ExampleClient() {
	ctx := context.Background()

	client := sqlauthz.NewClient(sqlauthz.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "myapp",
		User:     "postgres",
		Password: "password",
	})

	plan, err := client.Compile(ctx, sqlauthz.CompileOptions{
		Rules:  []string{"rules/*.rego"},
		Revoke: sqlauthz.RevokePolicy{Mode: sqlauthz.RevokeModeAll},
		// The executor owns the transaction.
		NoTransaction: true,
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(plan.HumanColored(false))

	if err := client.Execute(ctx, plan.Script, "30s"); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Permissions applied.")
}

// ExampleParseRevokePolicy demonstrates the CLI spelling of revoke policies.
func ExampleParseRevokePolicy() {
	policy, err := sqlauthz.ParseRevokePolicy("users=alice,bob")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(policy.Mode, policy.Users)
	// Output: users [alice bob]
}

// ExampleInspectCatalog demonstrates inspecting the entity snapshot rules
// are resolved against.
func ExampleInspectCatalog() {
	ctx := context.Background()

	cat, err := sqlauthz.InspectCatalog(ctx, sqlauthz.DatabaseConfig{
		Host:     os.Getenv("PGHOST"),
		Database: os.Getenv("PGDATABASE"),
		User:     os.Getenv("PGUSER"),
		Password: os.Getenv("PGPASSWORD"),
	})
	if err != nil {
		log.Fatal(err)
	}

	for _, actor := range cat.Actors() {
		fmt.Println(actor.Name)
	}
}
