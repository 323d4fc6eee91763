package main

import (
	"reflect"
	"testing"
)

func TestResolveOptionalLogArgBareFlagDefaultsToSin(t *testing.T) {
	got := resolveOptionalLogArg([]string{"--boot", "--log"})
	want := []string{"--boot", "--log=sin"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestResolveOptionalLogArgBareFlagFollowedByAnotherFlagDefaultsToSin(t *testing.T) {
	got := resolveOptionalLogArg([]string{"--log", "--bootonly"})
	want := []string{"--log=sin", "--bootonly"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestResolveOptionalLogArgBareFlagConsumesNextValue(t *testing.T) {
	got := resolveOptionalLogArg([]string{"--log", "session", "--port", "4001"})
	want := []string{"--log=session", "--port", "4001"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestResolveOptionalLogArgExplicitValueLeftUntouched(t *testing.T) {
	got := resolveOptionalLogArg([]string{"--log=session"})
	want := []string{"--log=session"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestResolveOptionalLogArgShortFormBareFlag(t *testing.T) {
	got := resolveOptionalLogArg([]string{"-log"})
	want := []string{"-log=sin"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
