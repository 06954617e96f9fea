package cli

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitat/internal/models"
)

type SubscriptionCmd struct {
	Status SubscriptionStatusCmd `cmd:"" help:"Show the subscription tier." default:"1"`
	Cancel SubscriptionCancelCmd `cmd:"" help:"Cancel the subscription."`
}

type SubscriptionStatusCmd struct{}

func (cmd *SubscriptionStatusCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Resume(bg); err != nil {
		return err
	}

	p, err := ctx.Subs.Refresh(bg)
	if err != nil {
		return err
	}
	ctx.track(p)

	st, err := ctx.Subs.Status()
	if err != nil {
		return err
	}
	fmt.Printf("Tier: %s\n", st.Effective)
	if st.ExpiresAt == nil {
		return nil
	}
	if st.Effective == models.TierPremium {
		fmt.Printf("Renews or expires on %s (%d days left)\n", st.ExpiresAt.In(ctx.Location).Format("2006-01-02"), st.DaysLeft)
	} else if st.Stored == models.TierPremium {
		fmt.Printf("Premium expired on %s\n", st.ExpiresAt.In(ctx.Location).Format("2006-01-02"))
	}
	return nil
}

type SubscriptionCancelCmd struct{}

func (cmd *SubscriptionCancelCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Resume(bg); err != nil {
		return err
	}
	if err := ctx.Subs.Cancel(bg); err != nil {
		return err
	}
	fmt.Println("Cancellation is handled by your app store; your tier updates on the next sync.")
	return nil
}
