package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/driftkv/driftkv/pkg/client"
)

func main() {
	nodes := []string{"localhost:3333"}

	c := client.New(nodes)
	defer c.Close()

	fmt.Println("=== DriftKV Client Example ===")

	fmt.Println("\n--- Basic Operations ---")

	if err := c.Set("user:1", "john_doe"); err != nil {
		log.Printf("SET failed: %v", err)
	} else {
		fmt.Println("SET user:1 = john_doe")
	}

	if value, err := c.Get("user:1"); err != nil {
		log.Printf("GET failed: %v", err)
	} else {
		fmt.Printf("GET user:1 = %s\n", value)
	}

	fmt.Println("\n--- Missing Keys ---")

	if _, err := c.Get("no-such-key"); errors.Is(err, client.ErrKeyNotFound) {
		fmt.Println("GET no-such-key = not found (as expected)")
	} else if err != nil {
		log.Printf("GET failed: %v", err)
	}

	fmt.Println("\n--- Delete ---")

	if deleted, err := c.Del("user:1"); err != nil {
		log.Printf("DEL failed: %v", err)
	} else {
		fmt.Printf("DEL user:1 = %t\n", deleted)
	}

	if deleted, err := c.Del("user:1"); err != nil {
		log.Printf("DEL failed: %v", err)
	} else {
		fmt.Printf("DEL user:1 again = %t\n", deleted)
	}

	fmt.Println("\n=== Example Complete ===")
}
