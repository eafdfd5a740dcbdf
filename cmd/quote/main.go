// quote prints current price and intraday volume for each symbol argument,
// using the same lookup chain as the bot.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/stockbot/internal/quotes"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: quote SYMBOL [SYMBOL...]")
		os.Exit(2)
	}

	client := quotes.NewClient(os.Getenv("YAHOO_QUERY1_URL"), os.Getenv("YAHOO_QUERY2_URL"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	failed := 0
	fmt.Printf("%-10s %12s %14s %14s %7s\n", "SYMBOL", "PRICE", "VOLUME", "AVG VOLUME", "RATIO")
	for _, arg := range os.Args[1:] {
		symbol := strings.ToUpper(arg)

		price, err := client.Price(ctx, symbol)
		if err != nil {
			fmt.Printf("%-10s %12s\n", symbol, "n/a")
			failed++
			continue
		}

		vol, err := client.Volume(ctx, symbol)
		if err != nil {
			fmt.Printf("%-10s %12s %14s %14s %7s\n", symbol, price.StringFixed(2), "-", "-", "-")
			continue
		}
		fmt.Printf("%-10s %12s %14.0f %14.0f %6.1fx\n", symbol, price.StringFixed(2), vol.Current, vol.Average, vol.Ratio())
	}

	if failed > 0 {
		os.Exit(1)
	}
}
