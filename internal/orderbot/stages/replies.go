package stages

import (
	"fmt"
	"strings"

	"github.com/dcosta/orderbot/internal/orderbot/catalog"
	"github.com/dcosta/orderbot/internal/orderbot/session"
)

const optionsFooter = "\n-----------------------------------\n" +
	"#️⃣ - FINISH order\n" +
	"*️⃣ - CANCEL order"

const welcomeOptions = "1️⃣ - MAKE A WISH\n" +
	"2️⃣ - CHECK DELIVERY INFO\n" +
	"0️⃣ - TALK TO ATTENDANT"

func invalidOptionReply() string {
	return "❌ Enter a valid option, please.\n⚠️ ONLY ONE OPTION AT A TIME ⚠️\n\n" + welcomeOptions
}

func menuListing(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("🚨 MENU 🚨\n\n")
	for _, item := range cat.Items() {
		fmt.Fprintf(&b, "%s - %s (%.2f)\n", item.ID, item.Description, item.Price)
	}
	b.WriteString("\n⚠️ ONLY ONE OPTION AT A TIME ⚠️\n")
	b.WriteString("Enter the CODE of the product you want to order:")
	return b.String()
}

func deliveryInfoReply(neighborhoods []string) string {
	var b strings.Builder
	b.WriteString("🚚 We deliver to these areas:\n\n")
	for _, n := range neighborhoods {
		fmt.Fprintf(&b, "  • %s\n", n)
	}
	b.WriteString("\nDelivery fee is confirmed by an attendant per region.\n\n")
	b.WriteString(welcomeOptions)
	return b.String()
}

func handoffReply() string {
	return "🔃 Forwarding you to an attendant.\n⏳ Wait a minute, please."
}

func invalidItemReply() string {
	return "❌ Invalid code, retype!\n" + optionsFooter
}

func itemAddedReply(description string) string {
	return fmt.Sprintf("✅ %s successfully added!\n\nEnter another option:\n%s", description, optionsFooter)
}

func canceledReply() string {
	return "🔴 Order CANCELED successfully.\n\n" + welcomeOptions
}

func addressPromptReply() string {
	return "🗺️ Now enter the ADDRESS.\n(Street, Number, Neighborhood)\n\n" +
		"-----------------------------------\n*️⃣ - CANCEL order"
}

func orderSummaryReply(sess *session.Session) string {
	return fmt.Sprintf("🗒️ ORDER SUMMARY:\n\n"+
		"🧁 Items: %s\n"+
		"🚚 Delivery fee: to be confirmed.\n"+
		"📍 Address: %s\n"+
		"💰 Total: %.2f\n"+
		"⏳ Delivery time: 50 minutes.",
		joinDescriptions(sess.CartDescriptions()), sess.Address, sess.CartTotal())
}

func orderPlacedReply() string {
	return "✅ Done, order placed!\n\n" +
		"🔊 Now, inform your payment method and whether you will need change, please.\n\n" +
		"⏳ An attendant will confirm the delivery fee for your region shortly."
}

func dispatchAckReply() string {
	return "🙏 Thank you! An attendant will take over from here.\n⏳ Wait a minute, please."
}

func newOrderNotice(sess *session.Session, ref, details string) string {
	return fmt.Sprintf("🔔 NEW ORDER [%s] 🔔\n\n"+
		"📞 Client: %s\n"+
		"🧁 Items: %s\n"+
		"📍 Address: %s\n"+
		"🚚 Delivery fee: to be confirmed.\n"+
		"💰 Total: %.2f\n"+
		"🛑 Details: %s",
		ref, sess.PartyID, joinDescriptions(sess.CartDescriptions()), sess.Address, sess.CartTotal(), details)
}

func reengagementCanceledReply() string {
	return "🔴 Order canceled. Starting fresh!\n\n" + welcomeOptions
}

func reengagementContinueReply() string {
	return "Great! You can continue your order.\nType #️⃣ to finish or *️⃣ to cancel."
}

// joinDescriptions renders cart descriptions as "A, B, C." the way summaries
// and operator notices display them.
func joinDescriptions(descriptions []string) string {
	if len(descriptions) == 0 {
		return "(empty)"
	}
	return strings.Join(descriptions, ", ") + "."
}
