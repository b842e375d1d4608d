package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	secret := os.Getenv("APP_SIGNING_SECRET")
	if secret == "" {
		secret = "test-secret"
	}
	email := os.Getenv("OPERATOR_EMAIL")
	if email == "" {
		email = "operator@example.com"
	}

	claims := jwt.MapClaims{
		"email": email,
		"role":  "operator",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(8 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	fmt.Println(signedToken)
}
