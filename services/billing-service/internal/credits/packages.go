package credits

// Balance holds a user's credit counts per denomination. Each denomination
// gates a different paid feature: chocolates buy messages, roses buy photos,
// champagne buys voice notes, hearts buy video clips.
type Balance struct {
	Chocolates int `json:"chocolates"`
	Roses      int `json:"roses"`
	Champagne  int `json:"champagne"`
	Hearts     int `json:"hearts"`
}

// Delta is the credit grant attached to a purchasable package. Subscription
// packages grant across several denominations at once.
type Delta struct {
	Chocolates int
	Roses      int
	Champagne  int
	Hearts     int
}

var packages = map[string]Delta{
	"messages_60":  {Chocolates: 60},
	"messages_80":  {Chocolates: 80},
	"messages_100": {Chocolates: 100},

	"photos_6":  {Roses: 6},
	"photos_10": {Roses: 10},
	"photos_14": {Roses: 14},

	"voice_10": {Champagne: 10},
	"voice_14": {Champagne: 14},
	"voice_30": {Champagne: 30},

	"videos_5":  {Hearts: 5},
	"videos_12": {Hearts: 12},
	"videos_20": {Hearts: 20},

	"sub_silver":   {Chocolates: 100, Roses: 5},
	"sub_gold":     {Chocolates: 200, Roses: 10, Champagne: 5},
	"sub_platinum": {Chocolates: 999999, Roses: 20, Champagne: 10, Hearts: 3},
}

// DeltaFor maps a package id to its credit grant. The bool is false for
// package ids this build does not know about.
func DeltaFor(packageID string) (Delta, bool) {
	d, ok := packages[packageID]
	return d, ok
}

// KnownPackage reports whether the package id is purchasable.
func KnownPackage(packageID string) bool {
	_, ok := packages[packageID]
	return ok
}

// Add merges a grant into the balance.
func (b Balance) Add(d Delta) Balance {
	b.Chocolates += d.Chocolates
	b.Roses += d.Roses
	b.Champagne += d.Champagne
	b.Hearts += d.Hearts
	return b
}
