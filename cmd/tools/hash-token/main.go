// Command hash-token generates an API bearer token and the PBKDF2 hash the
// server verifies it against.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"clipflow/internal/auth"
)

func main() {
	var (
		token  string
		length int
	)

	flag.StringVar(&token, "token", "", "Existing token to hash; omit to generate a new one")
	flag.IntVar(&length, "length", 32, "Byte length of the generated token")
	flag.Parse()

	generated := false
	token = strings.TrimSpace(token)
	if token == "" {
		value, err := auth.GenerateToken(length)
		if err != nil {
			fatalf("generate token: %v", err)
		}
		token = value
		generated = true
	}

	hash, err := auth.HashToken(token)
	if err != nil {
		fatalf("hash token: %v", err)
	}

	if generated {
		fmt.Printf("Token:      %s\n", token)
		fmt.Println("Store the token with the client; it cannot be recovered from the hash.")
	}
	fmt.Printf("Token hash: %s\n", hash)
	fmt.Println("Set CLIPFLOW_API_TOKEN_HASH to the hash to enable API authentication.")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
