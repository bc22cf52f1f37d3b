// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, Field Encryption,
// Ticket Signing) from the domain logic. It acts as an Infrastructure service
// injected into the Application layer via small interfaces.
package sec

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PurposeOtpLogin marks a ticket issued after credential verification while
// the one-time passcode is still outstanding.
const PurposeOtpLogin = "otp-login"

// TicketClaims is the payload of a pending-login ticket.
//
// # Why a signed ticket?
//
// Between the credential check and the OTP check the caller is only partially
// authenticated. A short-lived signed ticket carries the resolved account
// identity across that window without creating a session, making the
// partial-authentication state explicit and tamper-proof.
type TicketClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the payload small.
	MemberID string `json:"uid"`
	Email    string `json:"eml"`
	Purpose  string `json:"pur"`
}

// TicketService signs and verifies pending-login tickets using RS256.
type TicketService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
}

// NewTicketService creates a new TicketService.
// It reads RSA keys from the provided filesystem paths.
func NewTicketService(privateKeyPath, publicKeyPath, issuer string) (*TicketService, error) {
	privateKeyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read private key from %s: %w", privateKeyPath, err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse private key: %w", err)
	}

	publicKeyData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read public key from %s: %w", publicKeyPath, err)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse public key: %w", err)
	}

	return &TicketService{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
	}, nil
}

// IssueLoginTicket creates a signed pending-login ticket for an account.
func (service *TicketService) IssueLoginTicket(memberID, email string, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := TicketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		MemberID: memberID,
		Email:    email,
		Purpose:  PurposeOtpLogin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(service.privateKey)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign login ticket: %w", err)
	}

	return signedToken, nil
}

// VerifyLoginTicket checks the signature, validity window, and purpose of a ticket.
func (service *TicketService) VerifyLoginTicket(tokenString string) (*TicketClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TicketClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.publicKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("sec: invalid login ticket: %w", err)
	}

	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid login ticket claims")
	}

	if claims.Purpose != PurposeOtpLogin {
		return nil, fmt.Errorf("sec: ticket purpose mismatch")
	}

	return claims, nil
}
