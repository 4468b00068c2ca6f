package checks

import "context"

// ResolvePhases decides which phases run from the optional --pre and --post
// flags. With neither set, post-deployment checks always run and
// pre-deployment checks run only when the platform is not yet deployed.
// Setting exactly one flag to true runs only that phase.
func ResolvePhases(ctx context.Context, pre, post *bool, deployed func(context.Context) (bool, error)) (bool, bool, error) {
	runPost := true
	if post != nil {
		runPost = *post
	}

	var runPre bool
	if pre != nil {
		runPre = *pre
	} else {
		d, err := deployed(ctx)
		if err != nil {
			return false, false, err
		}
		runPre = !d
	}

	isSet := func(b *bool) bool { return b != nil && *b }
	if isSet(pre) && !isSet(post) {
		runPost = false
	}
	if isSet(post) && !isSet(pre) {
		runPre = false
	}
	return runPre, runPost, nil
}
