// Seed adds sample todos to the database. Run from project root: go run ./scripts/seed [-n 100]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"todo-api/internal/config"
	"todo-api/internal/database"
	"todo-api/internal/models"
	"todo-api/internal/repository"
)

func main() {
	total := flag.Int("n", 100, "number of todos to insert")
	flag.Parse()

	_ = godotenv.Load()

	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Config:", err)
		os.Exit(1)
	}
	db, err := database.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "DB connection failed:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		fmt.Fprintln(os.Stderr, "Schema failed:", err)
		os.Exit(1)
	}

	store := repository.NewStore(db)
	start := time.Now()
	for n := 1; n <= *total; n++ {
		desc := fmt.Sprintf("Description for todo %d", n)
		t, err := store.Create(ctx, models.NewTodo{Title: fmt.Sprintf("Todo %d", n), Description: &desc})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Insert failed:", err)
			os.Exit(1)
		}
		// Every third one is done.
		if n%3 == 0 {
			if _, err := store.Update(ctx, t.ID, models.TodoPatch{Completed: models.Some(true)}); err != nil {
				fmt.Fprintln(os.Stderr, "Update failed:", err)
				os.Exit(1)
			}
		}
		fmt.Printf("\rInserted %d / %d", n, *total)
	}

	fmt.Printf("\nDone: %d todos in %v\n", *total, time.Since(start))
}
