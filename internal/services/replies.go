package services

import (
	"fmt"
	"strings"

	"github.com/autolumiku/whatsapp-backend/internal/models"
)

// Reply texts sent back over WhatsApp. Everything user-facing is in
// Indonesian; staff commands keep their slash form in usage hints.

var fieldLabels = map[string]string{
	"make":         "merek",
	"model":        "model",
	"year":         "tahun",
	"price":        "harga",
	"mileage":      "kilometer",
	"color":        "warna",
	"transmission": "transmisi",
	"photo":        "foto",
}

var statusLabels = map[string]string{
	models.VehicleStatusAvailable: "Tersedia",
	models.VehicleStatusBooked:    "Dibooking",
	models.VehicleStatusSold:      "Terjual",
}

func fieldLabel(field string) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	return field
}

func statusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

func labelList(fields []string) string {
	labels := make([]string, 0, len(fields))
	for _, f := range fields {
		labels = append(labels, fieldLabel(f))
	}
	return strings.Join(labels, ", ")
}

// formatRupiah renders an IDR amount with dot thousand separators.
func formatRupiah(amount int64) string {
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	b.WriteString("Rp ")
	offset := len(digits) % 3
	if offset == 0 {
		offset = 3
	}
	for i, d := range digits {
		if i != 0 && (i-offset)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return b.String()
}

func vehicleSummaryLine(v *models.Vehicle) string {
	return fmt.Sprintf("%s %s %d • %s • %s", v.Make, v.Model, v.Year, formatRupiah(v.Price), statusLabel(v.Status))
}

func replyHelp() string {
	return `🤖 *Perintah Staff*

📸 /upload - Upload kendaraan baru
🔄 /status <ID> <status> - Ubah status kendaraan
📋 /stok [kata kunci] - Lihat stok kendaraan
📊 /stats - Statistik inventori
❌ /batal - Batalkan upload yang berjalan
ℹ️ /help - Tampilkan bantuan ini

Status yang valid: tersedia, dibooking, terjual`
}

func replyGreeting(tenant *models.Tenant) string {
	if tenant.GreetingTemplate != "" {
		return tenant.GreetingTemplate
	}
	name := tenant.AIName
	if name == "" {
		name = "Asisten"
	}
	return fmt.Sprintf(`👋 Halo! Saya %s dari %s.

Ada yang bisa saya bantu? Anda bisa tanya stok mobil, harga, atau jadwal lihat unit. 😊`, name, tenant.Name)
}

func replyCustomerVehicleList(vehicles []*models.Vehicle) string {
	if len(vehicles) == 0 {
		return `🚗 Mohon maaf, saat ini belum ada unit yang tersedia.

Silakan cek kembali nanti atau tinggalkan nomor Anda, kami kabari begitu ada unit baru. 🙏`
	}
	var b strings.Builder
	b.WriteString("🚗 *Unit yang tersedia saat ini:*\n\n")
	for _, v := range vehicles {
		fmt.Fprintf(&b, "• %s %s %d - %s\n", v.Make, v.Model, v.Year, formatRupiah(v.Price))
	}
	b.WriteString("\nKetik nama unit untuk info lengkap, atau tanya langsung ke kami. 😊")
	return b.String()
}

func replyCustomerGeneral(tenant *models.Tenant) string {
	name := tenant.AIName
	if name == "" {
		name = "Asisten"
	}
	return fmt.Sprintf(`Terima kasih sudah menghubungi %s! 🙏

Saya %s, siap bantu info stok mobil dan harga. Tim kami juga akan segera membalas pesan Anda.`, tenant.Name, name)
}

func replyUploadInstructions() string {
	return `📸 *Upload Kendaraan Baru*

Kirim foto kendaraan, lalu kirim datanya dalam satu pesan.

Contoh: _Brio 2020 120jt hitam matic 50rb km_

Data wajib: merek, model, tahun, harga.
Ketik /batal untuk membatalkan.`
}

func replyAskMissing(missing []string) string {
	return fmt.Sprintf(`📝 Hampir selesai! Masih kurang: *%s*.

Contoh: _Brio 2020 120jt_`, labelList(missing))
}

func replyPhotoSaved(count int, missing []string) string {
	if len(missing) == 0 {
		return fmt.Sprintf("✅ Foto ke-%d tersimpan.", count)
	}
	return fmt.Sprintf(`✅ Foto ke-%d tersimpan.

Sekarang kirim data kendaraannya. Masih kurang: *%s*.
Contoh: _Brio 2020 120jt hitam_`, count, labelList(missing))
}

func replyAskPhoto() string {
	return `📷 Data lengkap! Sekarang kirim minimal 1 foto kendaraan untuk menyelesaikan upload.`
}

func replyPhotoCap(max int) string {
	return fmt.Sprintf("⚠️ Maksimal %d foto per kendaraan. Foto terakhir tidak disimpan. Kirim data kendaraan untuk melanjutkan.", max)
}

func replyUploadCommitted(v *models.Vehicle) string {
	return fmt.Sprintf(`🎉 *Kendaraan berhasil diupload!*

🆔 ID: %s
🚗 %s %s %d
💰 %s
🛣️ %d km • %s • %s
📷 %d foto

Status: %s. Ubah dengan /status %s terjual`, v.VehicleID, v.Make, v.Model, v.Year, formatRupiah(v.Price),
		v.Mileage, v.Color, v.Transmission, len(v.Photos()), statusLabel(v.Status), v.VehicleID)
}

func replyCommitFailed() string {
	return `❌ Gagal menyimpan kendaraan karena gangguan sistem. Data Anda masih tersimpan, silakan coba kirim ulang pesan terakhir.`
}

func replyUnparseable() string {
	return `🤔 Saya belum bisa membaca data kendaraannya.

Coba tulis dengan format seperti:
• _Brio 2020 120jt_
• _Toyota Avanza 2019 135jt hitam manual_
• _Xenia 2021 150jt 30rb km_`
}

func replyValidationYear(year, min, max int) string {
	return fmt.Sprintf("⚠️ Tahun %d tidak valid. Tahun harus antara %d dan %d.", year, min, max)
}

func replyValidationPrice() string {
	return "⚠️ Harga tidak masuk akal. Tulis harga seperti _120jt_ atau _85000000_."
}

func replyValidationMileage() string {
	return "⚠️ Kilometer tidak valid. Maksimal 1.000.000 km, contoh: _50rb km_."
}

func replyDenied() string {
	return "🚫 Maaf, perintah ini hanya untuk staff terdaftar."
}

func replyStatusUsage() string {
	return `ℹ️ Format: /status <ID kendaraan> <status>

Contoh: /status V1234 terjual
Status yang valid: tersedia, dibooking, terjual`
}

func replyInvalidStatus(given string) string {
	return fmt.Sprintf("⚠️ Status '%s' tidak dikenal. Gunakan: tersedia, dibooking, atau terjual.", given)
}

func replyVehicleNotFound(id string) string {
	return fmt.Sprintf("🔍 Kendaraan dengan ID %s tidak ditemukan.", id)
}

func replyStatusUpdated(v *models.Vehicle) string {
	return fmt.Sprintf(`✅ *Status diperbarui!*

%s
Status baru: *%s*`, vehicleSummaryLine(v), statusLabel(v.Status))
}

func replyStockEmpty(keyword string) string {
	if keyword == "" {
		return "📋 Belum ada kendaraan di inventori."
	}
	return fmt.Sprintf("📋 Tidak ada kendaraan yang cocok dengan '%s'.", keyword)
}

func replyStockList(vehicles []*models.Vehicle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 *Stok Kendaraan* (%d unit)\n\n", len(vehicles))
	for _, v := range vehicles {
		fmt.Fprintf(&b, "🆔 %s\n%s\n\n", v.VehicleID, vehicleSummaryLine(v))
	}
	b.WriteString("Ubah status dengan /status <ID> <status>")
	return b.String()
}

func replyStats(counts map[string]int64) string {
	var total int64
	for _, c := range counts {
		total += c
	}
	return fmt.Sprintf(`📊 *Statistik Inventori*

🚗 Total: %d unit
✅ Tersedia: %d
📌 Dibooking: %d
💰 Terjual: %d`, total,
		counts[models.VehicleStatusAvailable],
		counts[models.VehicleStatusBooked],
		counts[models.VehicleStatusSold])
}

func replyCancelled() string {
	return "❌ Upload dibatalkan. Data yang belum tersimpan sudah dihapus."
}

func replyNothingToCancel() string {
	return "ℹ️ Tidak ada proses yang sedang berjalan."
}

func replySlowProcessing() string {
	return "⏳ Pesan Anda sedang diproses, mohon tunggu sebentar lalu coba lagi."
}
