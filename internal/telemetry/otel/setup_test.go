package otel

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	for _, ep := range []string{"", "   "} {
		p, err := NewProviders(context.Background(), ep, ServiceName, false)
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", ep, err)
		}
		if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
			t.Fatalf("NewProviders(%q): nil provider", ep)
		}
		if err := p.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint     string
		override     bool
		wantTarget   string
		wantInsecure bool
		wantErr      bool
	}{
		{"localhost:4317", false, "localhost:4317", true, false},
		{"http://collector:4317", false, "collector:4317", true, false},
		{"https://collector:4317", false, "collector:4317", false, false},
		{"https://collector:4317", true, "collector:4317", true, false},
		{"https://collector:4317/v1/traces", false, "collector:4317", false, false},
		{"http://", false, "", false, true},
		{"http://[::1", false, "", false, true},
	}
	for _, tt := range tests {
		target, insecure, err := parseEndpoint(tt.endpoint, tt.override)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseEndpoint(%q) err = %v, wantErr %v", tt.endpoint, err, tt.wantErr)
			continue
		}
		if err != nil {
			continue
		}
		if target != tt.wantTarget || insecure != tt.wantInsecure {
			t.Errorf("parseEndpoint(%q) = %q, %v; want %q, %v", tt.endpoint, target, insecure, tt.wantTarget, tt.wantInsecure)
		}
	}
}

func TestNewProviders_WithEndpoint(t *testing.T) {
	// Exporters dial lazily, so construction succeeds without a collector.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := NewProviders(ctx, "localhost:4317", ServiceName, true)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Second)
	defer cancelShutdown()
	_ = p.Shutdown(shutdownCtx)
}

func TestSetGlobal(t *testing.T) {
	p, err := NewProviders(context.Background(), "", ServiceName, false)
	if err != nil {
		t.Fatal(err)
	}
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	}()
	p.SetGlobal()
	if otel.GetTracerProvider() != p.TracerProvider {
		t.Error("global TracerProvider not set")
	}
	if otel.GetMeterProvider() != p.MeterProvider {
		t.Error("global MeterProvider not set")
	}
}
