// Package offerd embeds the offer service in a Go agent process.
//
// The client opens the same database and optional Redis cache as the
// offerd server and exposes the agent-facing operations directly, without
// an HTTP hop:
//
//	client, _ := offerd.New(ctx,
//	    offerd.WithPostgres("postgres://localhost/offerd"),
//	    offerd.WithRedis("localhost:6379", ""),
//	)
//	defer client.Close()
//
//	brief, _ := client.Profile(ctx, "u_42")
//	quote, _ := client.PricingOptions(ctx, "u_42", []string{"course_1"}, "")
//	decision, _ := client.ApplyDiscount(ctx, offerd.DiscountApplication{
//	    UserID:     "u_42",
//	    OptionType: offerd.OptionNewUser,
//	    Value:      decimal.RequireFromString("0.15"),
//	    CourseIDs:  []string{"course_1"},
//	}, "")
package offerd
