package mfa

import (
	"testing"
)

func TestGenerateOTP_ReturnsSixDigits(t *testing.T) {
	for i := 0; i < 200; i++ {
		otp, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		if !ValidOTPFormat(otp) {
			t.Fatalf("OTP %q is not six digits", otp)
		}
	}
}

func TestGenerateOTP_Randomness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		otp, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		seen[otp] = true
	}
	// 100 draws from 10^6 codes; more than a handful of collisions means a broken generator.
	if len(seen) < 95 {
		t.Errorf("only %d distinct OTPs in 100 draws", len(seen))
	}
}

func TestGenerateOTP_LeadingZerosPreserved(t *testing.T) {
	// P(no leading zero in 2000 draws) is about (0.9)^2000, effectively zero.
	for i := 0; i < 2000; i++ {
		otp, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		if otp[0] == '0' {
			if len(otp) != 6 {
				t.Fatalf("OTP %q lost its leading zero", otp)
			}
			return
		}
	}
	t.Error("no OTP with a leading zero in 2000 draws")
}

func TestValidOTPFormat(t *testing.T) {
	cases := map[string]bool{
		"123456":  true,
		"000000":  true,
		"12345":   false,
		"1234567": false,
		"12a456":  false,
		"":        false,
		" 12345":  false,
		"１２３４５６":  false,
	}
	for in, want := range cases {
		if got := ValidOTPFormat(in); got != want {
			t.Errorf("ValidOTPFormat(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestHashOTP_Deterministic(t *testing.T) {
	if HashOTP("123456") != HashOTP("123456") {
		t.Error("HashOTP should be deterministic")
	}
	if HashOTP("123456") == HashOTP("654321") {
		t.Error("different OTPs should hash differently")
	}
	if len(HashOTP("123456")) != 64 {
		t.Errorf("hash length = %d, want 64", len(HashOTP("123456")))
	}
}

func TestOTPEqual(t *testing.T) {
	stored := HashOTP("123456")
	if !OTPEqual("123456", stored) {
		t.Error("OTPEqual should match the same OTP")
	}
	if OTPEqual("123457", stored) {
		t.Error("OTPEqual should not match a different OTP")
	}
	if OTPEqual("", stored) {
		t.Error("OTPEqual should not match an empty OTP")
	}
}
