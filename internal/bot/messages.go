package bot

// Bot copy. Kept in one place so the tone stays consistent.
const (
	msgWelcome = "👋 Welcome to the AdWorks assistant!\n\n" +
		"I can answer questions about our services, take your contact details, " +
		"and keep you posted. Pick an option below or just type your question."

	msgHelp = "Here is what I can do:\n\n" +
		"/newlead — add a new lead step by step\n" +
		"/leads — show the latest leads\n" +
		"/stats — lead statistics\n" +
		"/status — service status\n" +
		"/myscore — your score and referrals\n" +
		"/qr — your personal referral QR code\n" +
		"/cancel — abort the current operation\n" +
		"/help — this message\n\n" +
		"Anything else you type, I will answer myself."

	msgAskName       = "📝 Let's add a lead. What is the contact's *name*?"
	msgNameTooShort  = "That name looks too short. Please enter at least 2 characters."
	msgAskPhone      = "Got it. Now the *phone number*, please."
	msgPhoneTooShort = "That number looks too short. Please enter at least 9 digits."
	msgAskEmail      = "Almost done. An *email* address? Send it, or reply `skip`."
	msgLeadSaved     = "✅ Lead saved! The team has been notified."
	msgLeadSaveFail  = "😔 Something went wrong saving the lead. Please try again in a minute."

	msgCanceled        = "Operation canceled. Anything else?"
	msgNothingToCancel = "Nothing to cancel right now."

	msgNotAdmin = "⛔ This command is restricted to administrators."

	msgNoLeads = "No leads yet."

	msgBroadcastUsage = "Usage: /broadcast <text>"
)

// skipKeyword lets the user omit the optional email step.
const skipKeyword = "skip"
