package entities

import "strings"

var firstNames = toSet(`
aaron adam adrian aisha alan albert alex alexander alice alicia amanda amber amy ana andrea andrew angela anna anne anthony antonio ari arjun ashley
barbara ben benjamin beth betty bill bob bobby brandon brian bruce
carl carlos carol caroline catherine charles charlie chen chris christina christine christopher claire craig cynthia
dan daniel david deborah dennis diana diego dmitri donald donna dorothy doug douglas dylan
ed edward elena eli elizabeth ellen emily emma eric erin ethan eva evan
fatima frank fred
gary george grace greg gregory
hannah harry heather helen henry hiro
ian igor isabel ivan
jack jacob james jamie jane janet jason jay jeff jeffrey jen jennifer jeremy jerry jessica jim jimmy joe john jon jonathan jordan jose joseph josh joshua joyce juan julia julie justin
karen kate katherine kathy kay keith kelly ken kenji kevin kim kyle
larry laura lauren leo liam linda lisa liz lucas lucy luis
maria mark martha martin mary matt matthew megan melissa mia michael michelle mike mohammed monica
nancy nate nathan neil nick nicole nina noah
olga olivia omar oscar
pam pamela patricia patrick paul peter philip priya
rachel raj ralph raymond rebecca richard rick rob robert roger ron ronald rose ruth ryan
sam samantha samuel sandra sara sarah scott sean sharon sophia stephanie stephen steve steven sue susan
tara ted teresa thomas tim timothy tina tom tony tyler
victor victoria vincent
walter wei william
yuki
zach zoe
`)

var locations = toSet(`
london paris berlin tokyo sydney toronto chicago boston seattle austin denver dublin madrid
amsterdam singapore bangalore mumbai nyc sf
`)

var orgSuffixes = []string{"Inc", "Inc.", "Corp", "Corp.", "LLC", "Ltd", "Ltd.", "Co.", "GmbH", "Group", "Labs", "Team"}

// IsKnownFirstName reports whether word is a gazetteer first name.
func IsKnownFirstName(word string) bool {
	return firstNames[strings.ToLower(word)]
}

func isLocation(word string) bool {
	return locations[strings.ToLower(word)]
}

func isOrgSuffix(word string) bool {
	for _, s := range orgSuffixes {
		if word == s {
			return true
		}
	}
	return false
}
