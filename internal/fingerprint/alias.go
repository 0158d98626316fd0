package fingerprint

var aliasAdjectives = [...]string{
	"Amber", "Ashen", "Bold", "Brisk", "Calm", "Clever", "Cosmic", "Crimson", "Daring", "Dusky",
	"Eager", "Fabled", "Fleet", "Gentle", "Gilded", "Hidden", "Hushed", "Jolly", "Keen", "Lucid",
	"Lunar", "Mellow", "Misty", "Nimble", "Noble", "Quiet", "Radiant", "Rustic", "Silent", "Solar",
	"Steady", "Stormy", "Subtle", "Sunny", "Swift", "Tidal", "Vivid", "Wandering", "Wild", "Wise",
}

var aliasAnimals = [...]string{
	"Badger", "Bison", "Crane", "Cricket", "Dolphin", "Falcon", "Ferret", "Finch", "Fox", "Gecko",
	"Heron", "Ibex", "Jackal", "Koala", "Lemur", "Lynx", "Magpie", "Marten", "Moth", "Newt",
	"Ocelot", "Orca", "Osprey", "Otter", "Owl", "Panda", "Puffin", "Quail", "Raven", "Salmon",
	"Seal", "Sparrow", "Stoat", "Swan", "Tapir", "Tern", "Toad", "Viper", "Walrus", "Wren",
}

// Alias returns a readable "Adjective Animal" name for a seed, so an avatar
// can be captioned without showing the identity behind it.
func Alias(seed int64) string {
	u := uint64(seed)
	n := uint64(len(aliasAdjectives))
	adjective := aliasAdjectives[u%n]
	animal := aliasAnimals[(u/n)%uint64(len(aliasAnimals))]
	return adjective + " " + animal
}
