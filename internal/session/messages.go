package session

// Replies sent to chat users
const (
	msgWelcome = "Welcome! Use /login to connect your Google Drive."

	msgMenu = "Available commands:\n" +
		"/start - Start the bot\n" +
		"/login - Log in to Google Drive\n" +
		"/auth <code> - Send the authorization code after logging in\n" +
		"/logout - Log out of Google Drive\n" +
		"/list - List uploaded files\n" +
		"/get <number> - Download a file by number\n" +
		"/delete <number> - Delete a file by number\n" +
		"/menu - Show this menu\n\n" +
		"Uploading files:\n" +
		"- Send the file you want to upload to the bot.\n" +
		"- Add a caption to use it as the file name.\n" +
		"- Without a caption the bot asks you for a name (including the extension).\n" +
		"- Examples of valid names:\n" +
		"  - document.pdf\n" +
		"  - holiday_photo.jpg\n" +
		"  - financial_report.xlsx\n" +
		"- Include the right extension so the file is recognized correctly."

	msgLoginURL = "Open this link to log in:\n%s\n\n" +
		"You will get a message here once the login is complete.\n" +
		"If the page shows a code instead, send it with /auth <code>."
	msgLoginFailed  = "Could not start the login. Please try again later."
	msgLoginSuccess = "Login successful! You can now upload files."
	msgAuthUsage    = "Usage: /auth <code>"
	msgAuthFailed   = "Login failed, the code is invalid or has expired."

	msgLogoutSuccess = "Logged out."
	msgNotLoggedIn   = "You are not logged in. Use /login to log in."
	msgLogoutNoLogin = "You are not logged in."

	msgNoFiles   = "You have not uploaded any files yet."
	msgListHead  = "Your uploaded files:\n"
	msgListEntry = "%d. %s (%s)\n"
	msgListFoot  = "\nUse /get <number> to download or /delete <number> to delete a file."

	msgGetUsage      = "Usage: /get <number>"
	msgDeleteUsage   = "Usage: /delete <number>"
	msgNotANumber    = "The file number must be a number."
	msgInvalidNumber = "Invalid file number."

	msgGetFailed     = "Failed to download the file."
	msgDeleteFailed  = "Failed to delete the file."
	msgDeleteSuccess = "File '%s' deleted."

	msgAskName       = "File received: %s\nPlease send the name to save this file under (including the extension)."
	msgNoPending     = "There is no file being uploaded. Please send a file first."
	msgEmptyName     = "The file name cannot be empty. Please send a valid file name."
	msgUploadSuccess = "File '%s' uploaded to Google Drive."
	msgUploadFailed  = "Failed to upload the file."

	msgUnknownCommand = "Unknown command. Use /menu to see what I can do."
)
