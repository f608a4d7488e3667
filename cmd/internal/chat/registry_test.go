package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestIssueTokenAnonymous(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, reg, store, transport := newTestStack(t, 1000)

	token, id, err := reg.IssueToken(ctx, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatalf("empty token")
	}

	slot, ok := id.Slot()
	if !ok {
		t.Fatalf("expected anonymous identity, got %v", id)
	}
	if slot < 1 || slot > 1000 {
		t.Fatalf("slot %d out of range [1,1000]", slot)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Tokens[token] != id {
		t.Fatalf("token not recorded: %+v", snap.Tokens)
	}
	if _, used := snap.UsedSlots[slot]; !used {
		t.Fatalf("slot %d not marked used", slot)
	}

	if len(transport.opened) != 1 || transport.opened[0] != id.RecipientKey() {
		t.Fatalf("channel opened for %v, want [%s]", transport.opened, id.RecipientKey())
	}
}

func TestIssueTokenAuthenticated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, reg, store, transport := newTestStack(t, 10)

	token, id, err := reg.IssueToken(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if id != Authenticated("bob@example.com") {
		t.Fatalf("got identity %v", id)
	}

	snap, _ := store.Load(ctx)
	if len(snap.UsedSlots) != 0 {
		t.Fatalf("authenticated issue consumed a slot: %v", snap.UsedSlots)
	}
	if snap.Tokens[token] != id {
		t.Fatalf("token not recorded")
	}
	if transport.opened[0] != "bob@example.com" {
		t.Fatalf("channel keyed by %q, want provider handle", transport.opened[0])
	}
}

func TestIssueTokenPoolExhausted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, reg, store, transport := newTestStack(t, 2)

	for i := 0; i < 2; i++ {
		if _, _, err := reg.IssueToken(ctx, ""); err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
	}

	_, _, err := reg.IssueToken(ctx, "")
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}

	// No token issued, no channel opened for the failed request.
	snap, _ := store.Load(ctx)
	if len(snap.Tokens) != 2 {
		t.Fatalf("exhausted issue recorded a token: %d", len(snap.Tokens))
	}
	if len(transport.opened) != 2 {
		t.Fatalf("exhausted issue opened a channel: %d", len(transport.opened))
	}
}

func TestReleaseFreesSlot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, reg, store, _ := newTestStack(t, 1)

	token, id, err := reg.IssueToken(ctx, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	removed, remaining, ok, err := reg.Release(ctx, token)
	if err != nil || !ok {
		t.Fatalf("release: ok=%v err=%v", ok, err)
	}
	if removed != id {
		t.Fatalf("released %v, want %v", removed, id)
	}
	if len(remaining.Tokens) != 0 || len(remaining.UsedSlots) != 0 {
		t.Fatalf("remaining snapshot not empty: %+v", remaining)
	}

	snap, _ := store.Load(ctx)
	if len(snap.Tokens) != 0 || len(snap.UsedSlots) != 0 {
		t.Fatalf("store not cleaned up: %+v", snap)
	}

	// With a pool of one, the released slot must be allocatable again.
	if _, _, err := reg.IssueToken(ctx, ""); err != nil {
		t.Fatalf("reissue after release: %v", err)
	}
}

func TestReleaseClosesChannel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, reg, _, transport := newTestStack(t, 10)

	token, _, err := reg.IssueToken(ctx, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, _, ok, err := reg.Release(ctx, token); err != nil || !ok {
		t.Fatalf("release: ok=%v err=%v", ok, err)
	}

	closed := transport.closedTokens()
	if len(closed) != 1 || closed[0] != token {
		t.Fatalf("closed tokens=%v want=[%s]", closed, token)
	}

	// The duplicate release finds no entry and must not close anything.
	if _, _, ok, _ := reg.Release(ctx, token); ok {
		t.Fatalf("duplicate release reported as released")
	}
	if got := transport.closedTokens(); len(got) != 1 {
		t.Fatalf("duplicate release closed a channel: %v", got)
	}
}

func TestReleaseUnknownTokenIsNoOp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, reg, store, _ := newTestStack(t, 10)

	if _, _, err := reg.IssueToken(ctx, "bob@example.com"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	before, _ := store.Load(ctx)

	_, _, ok, err := reg.Release(ctx, "no-such-token")
	if err != nil {
		t.Fatalf("release must not error on unknown token: %v", err)
	}
	if ok {
		t.Fatalf("unknown token reported as released")
	}

	after, _ := store.Load(ctx)
	if len(after.Tokens) != len(before.Tokens) {
		t.Fatalf("registry changed by unknown release")
	}
}

func TestReleaseTwiceIsSilent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, reg, _, _ := newTestStack(t, 10)

	token, _, err := reg.IssueToken(ctx, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, _, ok, _ := reg.Release(ctx, token); !ok {
		t.Fatalf("first release failed")
	}
	if _, _, ok, _ := reg.Release(ctx, token); ok {
		t.Fatalf("duplicate release reported as released")
	}
}

func TestResolveReturnsMatchingSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, reg, _, _ := newTestStack(t, 10)

	token, id, err := reg.IssueToken(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, snap, ok, err := reg.Resolve(ctx, token)
	if err != nil || !ok {
		t.Fatalf("resolve: ok=%v err=%v", ok, err)
	}
	if got != id {
		t.Fatalf("resolved %v, want %v", got, id)
	}
	if snap.Tokens[token] != id {
		t.Fatalf("snapshot does not contain the resolved token")
	}

	if _, _, ok, _ := reg.Resolve(ctx, "missing"); ok {
		t.Fatalf("unknown token resolved")
	}
}

func TestSerializedCyclesLoseNoUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, reg, store, _ := newTestStack(t, 128)

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, _, err := reg.IssueToken(ctx, fmt.Sprintf("user%d@example.com", n)); err != nil {
				t.Errorf("issue %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Tokens) != workers {
		t.Fatalf("lost updates: %d tokens recorded, want %d", len(snap.Tokens), workers)
	}
}
